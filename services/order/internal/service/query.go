package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
	"github.com/Skotchmaster/watch_store/services/order/internal/repo"
	"github.com/Skotchmaster/watch_store/services/order/internal/transport"
	"github.com/Skotchmaster/watch_store/services/order/internal/util"
)

// GetOrder hides other users' orders behind ErrNotFound when owner is set.
func (s *OrderService) GetOrder(ctx context.Context, orderID, owner uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, orderID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil, err
	}
	if owner != uuid.Nil && order.UserID != owner {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID, page, size int) (*transport.OrdersPage, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user required", ErrValidation)
	}
	return s.list(ctx, repo.OrderFilter{UserID: &userID}, page, size)
}

func (s *OrderService) ListAllOrders(ctx context.Context, status string, page, size int) (*transport.OrdersPage, error) {
	f := repo.OrderFilter{}
	if status != "" {
		st, err := domain.ParseStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrValidation, err.Error())
		}
		f.Status = st
	}
	return s.list(ctx, f, page, size)
}

func (s *OrderService) list(ctx context.Context, f repo.OrderFilter, page, size int) (*transport.OrdersPage, error) {
	page, offset, limit := util.Calculate(page, size)
	f.Offset, f.Limit = offset, limit

	orders, total, err := s.Repo.ListOrders(ctx, f)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &transport.OrdersPage{
		Data: orders,
		Meta: transport.PageMeta{
			Page:       page,
			Size:       limit,
			Total:      total,
			TotalPages: util.TotalPages(total, limit),
			HasPrev:    page > 1,
			HasNext:    int64(offset+limit) < total,
		},
	}, nil
}

// Stats reports every status, zero-filled, and counts revenue from delivered
// orders only.
func (s *OrderService) Stats(ctx context.Context) (*transport.StatsResponse, error) {
	rows, err := s.Repo.StatusStats(ctx)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[domain.Status]repo.StatusStat, len(rows))
	for _, r := range rows {
		byStatus[r.Status] = r
	}

	resp := &transport.StatsResponse{}
	for _, st := range domain.AllStatuses() {
		r := byStatus[st]
		resp.ByStatus = append(resp.ByStatus, transport.StatusSummary{
			Status:      st,
			Count:       r.Count,
			TotalAmount: r.TotalAmount,
		})
		resp.TotalOrders += r.Count
		if st == domain.StatusDelivered {
			resp.TotalRevenue = r.TotalAmount
		}
	}
	return resp, nil
}
