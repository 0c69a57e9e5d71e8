package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/watch_store/gateway/internal/middleware"
	auth "github.com/Skotchmaster/watch_store/pkg/middleware/auth"
)

type Deps struct {
	CartURL  string
	OrderURL string

	JWTSecret []byte
	Logger    *slog.Logger
}

func Register(e *echo.Echo, d *Deps) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, m := range middleware.Common(logger) {
		e.Use(m)
	}

	orderProxy, err := newProxy(d.OrderURL, "/api/v1")
	if err != nil {
		return err
	}

	cartProxy, err := newProxy(d.CartURL, "/api/v1")
	if err != nil {
		return err
	}

	// tokens are checked at the edge and again by each service
	api := e.Group("/api/v1")
	api.Use(auth.NewAuthMiddleware(d.JWTSecret).RequireAuth)

	api.Any("/cart", cartProxy)
	api.Any("/cart/*", cartProxy)
	api.Any("/orders", orderProxy)
	api.Any("/orders/*", orderProxy)

	return nil
}
