package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
)

// Product is the catalog row as seen by the order workflow: only the fields
// it reads and the two counters it moves. The catalog service owns the table.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"               json:"id"`
	Name      string    `gorm:"not null"                           json:"name"`
	Price     int64     `gorm:"not null;check:price >= 0"          json:"price"`
	Stock     int64     `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Sold      int64     `gorm:"not null;default:0;check:sold >= 0"  json:"sold"`
	IsActive  bool      `gorm:"not null"                           json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// CartItem mirrors the cart service table.
type CartItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                          json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_product;not null" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_user_product;not null" json:"product_id"`
	Quantity  int64     `gorm:"not null;check:quantity > 0"                   json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

type Order struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey"             json:"id"`
	UserID          uuid.UUID     `gorm:"type:uuid;index;not null"         json:"user_id"`
	Items           []OrderItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount     int64         `gorm:"not null"                         json:"total_amount"`
	Status          domain.Status `gorm:"type:varchar(16);index;not null"  json:"status"`
	ShippingAddress string        `gorm:"not null"                         json:"shipping_address"`
	Notes           string        `json:"notes,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	CustomerName    string        `json:"customer_name,omitempty"`
	CustomerPhone   string        `json:"customer_phone,omitempty"`
	CreatedAt       time.Time     `gorm:"index"                            json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is an immutable snapshot of a cart line taken at checkout.
type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"        json:"-"`
	OrderID     uuid.UUID `gorm:"type:uuid;index;not null"    json:"-"`
	Position    int       `gorm:"not null"                    json:"-"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null"          json:"product_id"`
	ProductName string    `gorm:"not null"                    json:"name"`
	Price       int64     `gorm:"not null"                    json:"price"`
	Quantity    int64     `gorm:"not null;check:quantity > 0" json:"quantity"`
	Subtotal    int64     `gorm:"not null"                    json:"subtotal"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
