package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/services/cart/internal/models"
)

var ErrStockExceeded = errors.New("quantity exceeds stock")

type GormRepo struct {
	DB *gorm.DB
}

// Line is a cart row with its product, nil when the product is gone.
type Line struct {
	Item    models.CartItem
	Product *models.Product
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.CartItem{})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
