package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/services/order/internal/models"
)

// ApplyStockDelta moves stock and sold in one statement. A negative
// stockDelta is conditional on enough stock being left, so concurrent orders
// can never drive stock below zero. sold is clamped at zero on restore.
func (r *GormRepo) ApplyStockDelta(ctx context.Context, productID uuid.UUID, stockDelta, soldDelta int64) error {
	q := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID)
	if stockDelta < 0 {
		q = q.Where("stock >= ?", -stockDelta)
	}

	res := q.Updates(map[string]any{
		"stock": gorm.Expr("stock + ?", stockDelta),
		"sold":  gorm.Expr("CASE WHEN sold + ? < 0 THEN 0 ELSE sold + ? END", soldDelta, soldDelta),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrProductMissing
	}
	return ErrInsufficientStock
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductMissing
		}
		return nil, err
	}
	return &p, nil
}
