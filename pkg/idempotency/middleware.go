package idempotency

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/watch_store/pkg/logging"
)

type ScopeFunc func(c echo.Context) string

type captureWriter struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware replays completed responses for a repeated Idempotency-Key.
// Keys are namespaced by scope (the caller identity) so two users never
// collide. A nil store disables the middleware.
func Middleware(store *Store, scope ScopeFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if store == nil {
			return next
		}
		return func(c echo.Context) error {
			raw := Key(c.Request())
			if raw == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			l := logging.FromContext(ctx).With("middleware", "idempotency")
			key := scope(c) + ":" + raw

			reserved, stored, err := store.Reserve(ctx, key)
			if err != nil {
				l.Warn("idempotency_reserve_error", "error", err)
				return next(c)
			}
			if stored != nil {
				l.Info("idempotency_replay", "status", stored.Status)
				c.Response().Header().Set(ReplayedHeader, "true")
				return c.Blob(stored.Status, stored.ContentType, stored.Body)
			}
			if !reserved {
				return echo.NewHTTPError(http.StatusConflict, "request with this Idempotency-Key is in progress")
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer}
			c.Response().Writer = cw

			if err := next(c); err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			if status >= http.StatusInternalServerError {
				if err := store.Release(ctx, key); err != nil {
					l.Warn("idempotency_release_error", "error", err)
				}
				return nil
			}

			if err := store.Complete(ctx, key, Response{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        cw.buf.Bytes(),
			}); err != nil {
				l.Warn("idempotency_complete_error", "error", err)
			}
			return nil
		}
	}
}
