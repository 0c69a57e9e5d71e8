package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
)

func itemsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func (r *GormRepo) InsertOrder(ctx context.Context, order *models.Order) error {
	return r.DB.WithContext(ctx).Create(order).Error
}

// GetOrder returns gorm.ErrRecordNotFound for a missing id. Items are
// loaded with a second query so the row lock applies to orders only.
func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	q := r.DB.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order models.Order
	if err := q.First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := itemsInOrder(r.DB.WithContext(ctx)).Where("order_id = ?", id).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// SetOrderStatus is a compare-and-set on the current status.
func (r *GormRepo) SetOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *GormRepo) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := q.Preload("Items", itemsInOrder).
		Order("created_at DESC, id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *GormRepo) StatusStats(ctx context.Context) ([]StatusStat, error) {
	var out []StatusStat
	err := r.DB.WithContext(ctx).Model(&models.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount").
		Group("status").
		Scan(&out).Error
	return out, err
}
