package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/pkg/events"
	"github.com/Skotchmaster/watch_store/pkg/logging"
	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
	"github.com/Skotchmaster/watch_store/services/order/internal/repo"
)

// UpdateStatus moves an order along the transition graph. Used by admins.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return s.transition(ctx, orderID, uuid.Nil, to)
}

// CancelOrder lets an owner cancel their own order while the graph allows it.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}
	return s.transition(ctx, orderID, userID, domain.StatusCancelled)
}

// transition is owner-scoped when owner is not uuid.Nil.
func (s *OrderService) transition(ctx context.Context, orderID, owner uuid.UUID, to domain.Status) (updated *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.update_status", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("status", to.String()),
	))
	defer func() { endSpan(span, err) }()

	l := logging.FromContext(ctx).With("svc", "order.update_status", "order_id", orderID, "requested", to)

	var from domain.Status
	err = s.Repo.Tx(ctx, func(tx repo.Store) error {
		order, err := tx.GetOrder(ctx, orderID, true)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return err
		}
		if owner != uuid.Nil && order.UserID != owner {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}

		from = order.Status
		if !domain.CanTransition(from, to) {
			return &TransitionError{From: from, To: to}
		}

		if to == domain.StatusCancelled {
			// line snapshots, not current product data, define what goes back
			for _, it := range order.Items {
				err := tx.ApplyStockDelta(ctx, it.ProductID, it.Quantity, -it.Quantity)
				if errors.Is(err, repo.ErrProductMissing) {
					l.Warn("restore_stock_skipped", "product_id", it.ProductID, "quantity", it.Quantity, "reason", "product no longer exists")
					continue
				}
				if err != nil {
					return err
				}
			}
		}

		if err := tx.SetOrderStatus(ctx, orderID, from, to); err != nil {
			if errors.Is(err, repo.ErrStaleStatus) {
				return fmt.Errorf("%w: order %s was updated concurrently", ErrConflict, orderID)
			}
			return err
		}

		updated, err = tx.GetOrder(ctx, orderID, false)
		if err != nil {
			return err
		}

		return tx.Enqueue(ctx, s.topic(), orderID.String(), orderEvent(events.TypeOrderStatusChanged, updated, from))
	})
	if err != nil {
		if isBusinessError(err) {
			l.Info("update_status_rejected", "current", from, "error", err)
		} else {
			l.Error("update_status_rolled_back", "current", from, "error", err)
		}
		return nil, err
	}

	s.Metrics.Transition(from.String(), to.String())
	l.Info("order_status_changed", "from", from, "to", to)
	return updated, nil
}
