package transport

import "github.com/google/uuid"

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// CartLine is a cart row enriched with current product data. Unavailable
// lines stay visible but do not count towards the total.
type CartLine struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int64     `json:"quantity"`
	Subtotal  int64     `json:"subtotal"`
	Stock     int64     `json:"stock"`
	Available bool      `json:"available"`
}

type CartResponse struct {
	Items     []CartLine `json:"items"`
	Total     int64      `json:"total"`
	ItemCount int64      `json:"item_count"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
