package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/watch_store/pkg/logging"
	middleware "github.com/Skotchmaster/watch_store/pkg/middleware/auth"
	"github.com/Skotchmaster/watch_store/pkg/tokens"
	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/service"
	"github.com/Skotchmaster/watch_store/services/order/internal/transport"
	"github.com/Skotchmaster/watch_store/services/order/internal/util"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func orderID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	return id, nil
}

func page(c echo.Context) (int, int) {
	return util.ParseIntDefault(c.QueryParam("page"), 1),
		util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
}

// fail maps service errors onto HTTP responses and logs them under event.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	var te *service.TransitionError
	switch {
	case errors.As(err, &te):
		l.Warn(event, "status", http.StatusConflict, "reason", "invalid transition", "current", te.From, "requested", te.To)
		allowed := domain.AllowedTransitions(te.From)
		if allowed == nil {
			allowed = []domain.Status{}
		}
		return c.JSON(http.StatusConflict, transport.TransitionErrorResponse{
			Message:   te.Error(),
			Current:   te.From,
			Requested: te.To,
			Allowed:   allowed,
		})
	case errors.Is(err, service.ErrValidation):
		l.Warn(event, "status", http.StatusBadRequest, "reason", "validation", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", http.StatusNotFound, "reason", "not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", http.StatusConflict, "reason", "conflict", "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		l.Error(event, "status", http.StatusInternalServerError, "reason", "internal error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	userID, ok := middleware.UserID(c)
	if !ok {
		l.Warn("create_order_error", "status", 401, "reason", "no user in context")
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.CreateOrder(ctx, userID, req)
	if err != nil {
		return fail(c, l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) GetMyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_my_orders")

	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	p, size := page(c)
	res, err := h.Svc.ListMyOrders(ctx, userID, p, size)
	if err != nil {
		return fail(c, l, "get_my_orders_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := orderID(c)
	if err != nil {
		return err
	}

	// admins may read any order
	owner := userID
	if role, _ := c.Get(middleware.CtxRole).(string); role == tokens.RoleAdmin {
		owner = uuid.Nil
	}

	order, err := h.Svc.GetOrder(ctx, id, owner)
	if err != nil {
		return fail(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	userID, ok := middleware.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	id, err := orderID(c)
	if err != nil {
		return err
	}

	order, err := h.Svc.CancelOrder(ctx, id, userID)
	if err != nil {
		return fail(c, l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) GetAllOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_all_orders")

	p, size := page(c)
	res, err := h.Svc.ListAllOrders(ctx, c.QueryParam("status"), p, size)
	if err != nil {
		return fail(c, l, "get_all_orders_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_stats")

	res, err := h.Svc.Stats(ctx)
	if err != nil {
		return fail(c, l, "get_stats_error", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	id, err := orderID(c)
	if err != nil {
		return err
	}

	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil || req.Status == "" {
		l.Warn("update_status_error", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return fail(c, l, "update_status_error", err)
	}

	l.Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}
