package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/pkg/outbox"
	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductMissing    = errors.New("product missing")
	ErrStaleStatus       = errors.New("order status changed concurrently")
	ErrCartChanged       = errors.New("cart changed concurrently")
)

// CartLine is a cart row joined with its product. Product is nil when the
// referenced row no longer exists.
type CartLine struct {
	Item    models.CartItem
	Product *models.Product
}

type OrderFilter struct {
	UserID *uuid.UUID
	Status domain.Status
	Offset int
	Limit  int
}

type StatusStat struct {
	Status      domain.Status
	Count       int64
	TotalAmount int64
}

// Store is everything the order service needs from persistence. Tx hands the
// callback a Store bound to a single database transaction.
type Store interface {
	Tx(ctx context.Context, fn func(tx Store) error) error

	CartLines(ctx context.Context, userID uuid.UUID) ([]CartLine, error)
	DeleteCartItems(ctx context.Context, userID uuid.UUID, itemIDs []uuid.UUID) error

	ApplyStockDelta(ctx context.Context, productID uuid.UUID, stockDelta, soldDelta int64) error

	InsertOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, from, to domain.Status) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	StatusStats(ctx context.Context) ([]StatusStat, error)

	Enqueue(ctx context.Context, topic, key string, payload any) error
}

type GormRepo struct {
	DB     *gorm.DB
	Outbox outbox.Outbox
}

var _ Store = (*GormRepo)(nil)

func (r *GormRepo) Tx(ctx context.Context, fn func(tx Store) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx, Outbox: r.Outbox})
	})
}

func (r *GormRepo) Enqueue(ctx context.Context, topic, key string, payload any) error {
	_, err := r.Outbox.Enqueue(r.DB.WithContext(ctx), topic, key, payload)
	return err
}

// Migrate creates the tables this service owns. products and cart_items
// belong to the catalog and cart services.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &outbox.Record{})
}
