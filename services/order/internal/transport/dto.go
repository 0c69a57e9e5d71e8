package transport

import (
	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
)

type CreateOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	Notes           string `json:"notes"`
	PaymentMethod   string `json:"payment_method"`
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

type OrdersPage struct {
	Data []models.Order `json:"data"`
	Meta PageMeta       `json:"meta"`
}

type StatusSummary struct {
	Status      domain.Status `json:"status"`
	Count       int64         `json:"count"`
	TotalAmount int64         `json:"total_amount"`
}

type StatsResponse struct {
	ByStatus     []StatusSummary `json:"by_status"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue int64           `json:"total_revenue"`
}

type TransitionErrorResponse struct {
	Message   string          `json:"message"`
	Current   domain.Status   `json:"current"`
	Requested domain.Status   `json:"requested"`
	Allowed   []domain.Status `json:"allowed"`
}
