package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/watch_store/pkg/idempotency"
	"github.com/Skotchmaster/watch_store/pkg/metrics"
	middleware "github.com/Skotchmaster/watch_store/pkg/middleware/auth"
)

type Deps struct {
	OrderHandler *OrderHTTP
	JWTSecret    []byte
	// Idempotency is optional; without it POST /orders has no replay protection.
	Idempotency *idempotency.Store
	Metrics     *metrics.Metrics
	Ready       func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	authMW := middleware.NewAuthMiddleware(d.JWTSecret)
	idem := idempotency.Middleware(d.Idempotency, func(c echo.Context) string {
		return "order:" + c.Get(middleware.CtxUserID).(string)
	})

	orders := e.Group("/orders", authMW.RequireAuth)
	orders.POST("", d.OrderHandler.CreateOrder, idem)
	orders.GET("/my-orders", d.OrderHandler.GetMyOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	orders.GET("/admin/all", d.OrderHandler.GetAllOrders, authMW.RequireAdmin)
	orders.GET("/admin/stats", d.OrderHandler.GetStats, authMW.RequireAdmin)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus, authMW.RequireAdmin)
}
