package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skotchmaster/watch_store/pkg/events"
	"github.com/Skotchmaster/watch_store/pkg/logging"
	"github.com/Skotchmaster/watch_store/pkg/metrics"
	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
	"github.com/Skotchmaster/watch_store/services/order/internal/repo"
	"github.com/Skotchmaster/watch_store/services/order/internal/transport"
)

const (
	maxAddressLen = 500
	maxNotesLen   = 1000
)

var tracer = otel.Tracer("github.com/Skotchmaster/watch_store/services/order")

type OrderService struct {
	Repo    repo.Store
	Metrics *metrics.Metrics
	// Topic receives order events through the outbox. Defaults to events.TopicOrderEvents.
	Topic string
}

func (s *OrderService) topic() string {
	if s.Topic != "" {
		return s.Topic
	}
	return events.TopicOrderEvents
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func validateDetails(req *transport.CreateOrderRequest) error {
	req.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
	req.Notes = strings.TrimSpace(req.Notes)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)

	if req.ShippingAddress == "" {
		return fmt.Errorf("%w: shipping_address required", ErrValidation)
	}
	if len(req.ShippingAddress) > maxAddressLen {
		return fmt.Errorf("%w: shipping_address too long", ErrValidation)
	}
	if len(req.Notes) > maxNotesLen {
		return fmt.Errorf("%w: notes too long", ErrValidation)
	}
	return nil
}

// snapshot validates every line before anything is written and builds the
// immutable order lines.
func snapshot(lines []repo.CartLine) ([]models.OrderItem, int64, error) {
	if len(lines) == 0 {
		return nil, 0, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	items := make([]models.OrderItem, 0, len(lines))
	var total int64
	for i, ln := range lines {
		p := ln.Product
		if p == nil {
			return nil, 0, fmt.Errorf("%w: product %s", ErrNotFound, ln.Item.ProductID)
		}
		if !p.IsActive {
			return nil, 0, fmt.Errorf("%w: product %q is not available", ErrValidation, p.Name)
		}
		if p.Stock < ln.Item.Quantity {
			return nil, 0, fmt.Errorf("%w: not enough stock for %q", ErrValidation, p.Name)
		}

		subtotal := p.Price * ln.Item.Quantity
		items = append(items, models.OrderItem{
			Position:    i,
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Quantity:    ln.Item.Quantity,
			Subtotal:    subtotal,
		})
		total += subtotal
	}
	return items, total, nil
}

// CreateOrder converts the caller's cart into a pending order. Validation,
// order insert, stock decrements, cart cleanup and the outbox event share one
// transaction: either all of them happen or none do.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, req transport.CreateOrderRequest) (order *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.create", trace.WithAttributes(attribute.String("user_id", userID.String())))
	defer func() { endSpan(span, err) }()

	l := logging.FromContext(ctx).With("svc", "order.create", "user_id", userID)

	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}
	if err := validateDetails(&req); err != nil {
		return nil, err
	}

	stage := "load_cart"
	err = s.Repo.Tx(ctx, func(tx repo.Store) error {
		lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return err
		}

		stage = "validate"
		items, total, err := snapshot(lines)
		if err != nil {
			return err
		}

		stage = "insert_order"
		order = &models.Order{
			UserID:          userID,
			Items:           items,
			TotalAmount:     total,
			Status:          domain.StatusPending,
			ShippingAddress: req.ShippingAddress,
			Notes:           req.Notes,
			PaymentMethod:   req.PaymentMethod,
			CustomerName:    req.CustomerName,
			CustomerPhone:   req.CustomerPhone,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}

		stage = "stock_delta"
		for _, ln := range lines {
			q := ln.Item.Quantity
			if err := tx.ApplyStockDelta(ctx, ln.Item.ProductID, -q, q); err != nil {
				switch {
				case errors.Is(err, repo.ErrInsufficientStock):
					s.Metrics.StockConflict()
					return fmt.Errorf("%w: stock for %q changed, retry", ErrConflict, ln.Product.Name)
				case errors.Is(err, repo.ErrProductMissing):
					return fmt.Errorf("%w: product %s", ErrNotFound, ln.Item.ProductID)
				}
				return err
			}
		}

		stage = "clear_cart"
		itemIDs := make([]uuid.UUID, 0, len(lines))
		for _, ln := range lines {
			itemIDs = append(itemIDs, ln.Item.ID)
		}
		if err := tx.DeleteCartItems(ctx, userID, itemIDs); err != nil {
			if errors.Is(err, repo.ErrCartChanged) {
				return fmt.Errorf("%w: cart changed during checkout, retry", ErrConflict)
			}
			return err
		}

		stage = "enqueue_event"
		if err := tx.Enqueue(ctx, s.topic(), order.ID.String(), orderEvent(events.TypeOrderCreated, order, "")); err != nil {
			return err
		}

		stage = "commit"
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			l.Info("create_order_rejected", "stage", stage, "error", err)
		} else {
			// the transaction rolled back; nothing from the stages above persisted
			args := []any{"stage", stage, "error", err}
			if order != nil {
				args = append(args, "order_id", order.ID)
			}
			l.Error("create_order_rolled_back", args...)
		}
		return nil, err
	}

	s.Metrics.OrderCreated()
	span.SetAttributes(attribute.String("order_id", order.ID.String()), attribute.Int64("total_amount", order.TotalAmount))
	l.Info("order_created", "order_id", order.ID, "total_amount", order.TotalAmount, "lines", len(order.Items))
	return order, nil
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidTransition)
}

func orderEvent(typ string, o *models.Order, previous domain.Status) events.OrderEvent {
	lines := make([]events.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, events.OrderLine{ProductID: it.ProductID.String(), Quantity: it.Quantity, Price: it.Price})
	}
	return events.OrderEvent{
		Type:           typ,
		OrderID:        o.ID.String(),
		UserID:         o.UserID.String(),
		Status:         o.Status.String(),
		PreviousStatus: previous.String(),
		TotalAmount:    o.TotalAmount,
		Items:          lines,
		OccurredAt:     time.Now().UTC(),
	}
}
