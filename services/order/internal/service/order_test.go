package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/Skotchmaster/watch_store/pkg/dbtest"
	"github.com/Skotchmaster/watch_store/pkg/events"
	"github.com/Skotchmaster/watch_store/pkg/metrics"
	"github.com/Skotchmaster/watch_store/pkg/outbox"
	"github.com/Skotchmaster/watch_store/services/order/internal/domain"
	"github.com/Skotchmaster/watch_store/services/order/internal/models"
	"github.com/Skotchmaster/watch_store/services/order/internal/repo"
	"github.com/Skotchmaster/watch_store/services/order/internal/transport"
)

// racingStore empties a product's stock inside the transaction right before
// the conditional decrement runs, the way a concurrent order would.
type racingStore struct {
	repo.Store
	exhaust uuid.UUID
}

func (s racingStore) Tx(ctx context.Context, fn func(tx repo.Store) error) error {
	return s.Store.Tx(ctx, func(tx repo.Store) error {
		return fn(racingStore{Store: tx, exhaust: s.exhaust})
	})
}

func (s racingStore) ApplyStockDelta(ctx context.Context, productID uuid.UUID, stockDelta, soldDelta int64) error {
	if productID == s.exhaust && stockDelta < 0 {
		db := s.Store.(*repo.GormRepo).DB
		if err := db.Exec("UPDATE products SET stock = 0 WHERE id = ?", productID).Error; err != nil {
			return err
		}
	}
	return s.Store.ApplyStockDelta(ctx, productID, stockDelta, soldDelta)
}

type OrderServiceSuite struct {
	suite.Suite

	db   *gorm.DB
	repo *repo.GormRepo
	svc  *OrderService
	ctx  context.Context

	user uuid.UUID
	seq  int
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.db = dbtest.Open(s.T(),
		&models.Product{}, &models.CartItem{},
		&models.Order{}, &models.OrderItem{}, &outbox.Record{},
	)
	s.repo = &repo.GormRepo{DB: s.db}
	s.svc = &OrderService{Repo: s.repo, Metrics: metrics.New("order")}
	s.ctx = context.Background()
	s.user = uuid.New()
	s.seq = 0
}

func (s *OrderServiceSuite) product(name string, price, stock int64, active bool) models.Product {
	p := models.Product{ID: uuid.New(), Name: name, Price: price, Stock: stock, IsActive: active}
	s.Require().NoError(s.db.Create(&p).Error)
	return p
}

func (s *OrderServiceSuite) addToCart(user uuid.UUID, productID uuid.UUID, qty int64) {
	s.seq++
	item := models.CartItem{
		ID:        uuid.New(),
		UserID:    user,
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, s.seq, 0, time.UTC),
	}
	s.Require().NoError(s.db.Create(&item).Error)
}

func (s *OrderServiceSuite) reload(id uuid.UUID) models.Product {
	var p models.Product
	s.Require().NoError(s.db.First(&p, "id = ?", id).Error)
	return p
}

func (s *OrderServiceSuite) count(model any) int64 {
	var n int64
	s.Require().NoError(s.db.Model(model).Count(&n).Error)
	return n
}

func (s *OrderServiceSuite) cartSize(user uuid.UUID) int64 {
	var n int64
	s.Require().NoError(s.db.Model(&models.CartItem{}).Where("user_id = ?", user).Count(&n).Error)
	return n
}

func (s *OrderServiceSuite) details() transport.CreateOrderRequest {
	return transport.CreateOrderRequest{ShippingAddress: " 221B Baker Street ", Notes: "ring twice"}
}

func (s *OrderServiceSuite) lastEvent() events.OrderEvent {
	var rec outbox.Record
	s.Require().NoError(s.db.Order("id DESC").First(&rec).Error)
	var ev events.OrderEvent
	s.Require().NoError(json.Unmarshal(rec.Payload, &ev))
	return ev
}

func (s *OrderServiceSuite) placeOrder() (*models.Order, models.Product, models.Product) {
	a := s.product("Seamaster", 100, 10, true)
	b := s.product("Speedmaster", 50, 5, true)
	s.addToCart(s.user, a.ID, 2)
	s.addToCart(s.user, b.ID, 1)

	order, err := s.svc.CreateOrder(s.ctx, s.user, s.details())
	s.Require().NoError(err)
	return order, a, b
}

func (s *OrderServiceSuite) TestCreateOrder_ConvertsCart() {
	order, a, b := s.placeOrder()

	s.Equal(domain.StatusPending, order.Status)
	s.EqualValues(250, order.TotalAmount)
	s.Equal("221B Baker Street", order.ShippingAddress)
	s.Equal("ring twice", order.Notes)
	s.Require().Len(order.Items, 2)
	s.Equal("Seamaster", order.Items[0].ProductName)
	s.EqualValues(200, order.Items[0].Subtotal)
	s.EqualValues(50, order.Items[1].Subtotal)

	pa, pb := s.reload(a.ID), s.reload(b.ID)
	s.EqualValues(8, pa.Stock)
	s.EqualValues(2, pa.Sold)
	s.EqualValues(4, pb.Stock)
	s.EqualValues(1, pb.Sold)

	s.Zero(s.cartSize(s.user))

	ev := s.lastEvent()
	s.Equal(events.TypeOrderCreated, ev.Type)
	s.Equal(order.ID.String(), ev.OrderID)
	s.EqualValues(250, ev.TotalAmount)
	s.Len(ev.Items, 2)

	stored, err := s.svc.GetOrder(s.ctx, order.ID, s.user)
	s.Require().NoError(err)
	s.EqualValues(250, stored.TotalAmount)
	s.Equal(order.Items[0].ProductID, stored.Items[0].ProductID)
}

func (s *OrderServiceSuite) TestCreateOrder_LeavesOtherCartsAlone() {
	p := s.product("Aqua Terra", 300, 10, true)
	other := uuid.New()
	s.addToCart(s.user, p.ID, 1)
	s.addToCart(other, p.ID, 3)

	_, err := s.svc.CreateOrder(s.ctx, s.user, s.details())
	s.Require().NoError(err)

	s.Zero(s.cartSize(s.user))
	s.EqualValues(1, s.cartSize(other))
}

func (s *OrderServiceSuite) TestCreateOrder_Rejections() {
	tests := []struct {
		name    string
		setup   func() (before []models.Product)
		req     transport.CreateOrderRequest
		is      error
		message string
	}{
		{
			name:    "empty cart",
			setup:   func() []models.Product { return nil },
			req:     s.details(),
			is:      ErrValidation,
			message: "cart is empty",
		},
		{
			name: "missing shipping address",
			setup: func() []models.Product {
				p := s.product("Constellation", 100, 5, true)
				s.addToCart(s.user, p.ID, 1)
				return []models.Product{p}
			},
			req: transport.CreateOrderRequest{ShippingAddress: "   "},
			is:  ErrValidation,
		},
		{
			name: "inactive product",
			setup: func() []models.Product {
				ok := s.product("Railmaster", 100, 5, true)
				off := s.product("Discontinued", 100, 5, false)
				s.addToCart(s.user, ok.ID, 1)
				s.addToCart(s.user, off.ID, 1)
				return []models.Product{ok, off}
			},
			req:     s.details(),
			is:      ErrValidation,
			message: `"Discontinued" is not available`,
		},
		{
			name: "second line exceeds stock",
			setup: func() []models.Product {
				a := s.product("Planet Ocean", 100, 10, true)
				b := s.product("Ploprof", 50, 1, true)
				s.addToCart(s.user, a.ID, 2)
				s.addToCart(s.user, b.ID, 2)
				return []models.Product{a, b}
			},
			req:     s.details(),
			is:      ErrValidation,
			message: `not enough stock for "Ploprof"`,
		},
		{
			name: "product deleted after carting",
			setup: func() []models.Product {
				ghost := uuid.New()
				s.addToCart(s.user, ghost, 1)
				return nil
			},
			req: s.details(),
			is:  ErrNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			before := tt.setup()
			cartBefore := s.cartSize(s.user)

			order, err := s.svc.CreateOrder(s.ctx, s.user, tt.req)
			s.Require().Error(err)
			s.Nil(order)
			s.True(errors.Is(err, tt.is), "got %v", err)
			if tt.message != "" {
				s.Contains(err.Error(), tt.message)
			}

			s.Zero(s.count(&models.Order{}))
			s.Zero(s.count(&models.OrderItem{}))
			s.Zero(s.count(&outbox.Record{}))
			s.Equal(cartBefore, s.cartSize(s.user))
			for _, p := range before {
				after := s.reload(p.ID)
				s.Equal(p.Stock, after.Stock, p.Name)
				s.Equal(p.Sold, after.Sold, p.Name)
			}
		})
	}
}

func (s *OrderServiceSuite) TestCreateOrder_ConcurrentStockExhaustionRollsBack() {
	a := s.product("Seamaster", 100, 10, true)
	b := s.product("Speedmaster", 50, 5, true)
	s.addToCart(s.user, a.ID, 2)
	s.addToCart(s.user, b.ID, 1)

	s.svc.Repo = racingStore{Store: s.repo, exhaust: b.ID}

	order, err := s.svc.CreateOrder(s.ctx, s.user, s.details())
	s.Require().Error(err)
	s.Nil(order)
	s.True(errors.Is(err, ErrConflict), "got %v", err)

	// the decrement already applied to the first line is rolled back too
	pa, pb := s.reload(a.ID), s.reload(b.ID)
	s.EqualValues(10, pa.Stock)
	s.EqualValues(0, pa.Sold)
	s.EqualValues(5, pb.Stock)
	s.Zero(s.count(&models.Order{}))
	s.EqualValues(2, s.cartSize(s.user))
}

func (s *OrderServiceSuite) TestCreateOrder_SecondCheckoutSeesEmptyCart() {
	s.placeOrder()

	_, err := s.svc.CreateOrder(s.ctx, s.user, s.details())
	s.Require().Error(err)
	s.True(errors.Is(err, ErrValidation))
	s.EqualValues(1, s.count(&models.Order{}))
}

func (s *OrderServiceSuite) TestSnapshotsSurviveProductEdits() {
	order, a, _ := s.placeOrder()

	s.Require().NoError(s.db.Model(&models.Product{}).Where("id = ?", a.ID).
		Updates(map[string]any{"price": 999, "name": "Renamed"}).Error)

	stored, err := s.svc.GetOrder(s.ctx, order.ID, uuid.Nil)
	s.Require().NoError(err)
	s.Equal("Seamaster", stored.Items[0].ProductName)
	s.EqualValues(100, stored.Items[0].Price)
	s.EqualValues(250, stored.TotalAmount)
}

func (s *OrderServiceSuite) TestUpdateStatus_FollowsGraph() {
	order, _, _ := s.placeOrder()

	updated, err := s.svc.UpdateStatus(s.ctx, order.ID, "confirmed")
	s.Require().NoError(err)
	s.Equal(domain.StatusConfirmed, updated.Status)
	s.Len(updated.Items, 2)

	ev := s.lastEvent()
	s.Equal(events.TypeOrderStatusChanged, ev.Type)
	s.Equal("pending", ev.PreviousStatus)
	s.Equal("confirmed", ev.Status)

	_, err = s.svc.UpdateStatus(s.ctx, order.ID, "delivered")
	var te *TransitionError
	s.Require().True(errors.As(err, &te), "got %v", err)
	s.Equal(domain.StatusConfirmed, te.From)
	s.Equal(domain.StatusDelivered, te.To)
	s.True(errors.Is(err, ErrInvalidTransition))

	for _, st := range []string{"processing", "shipped", "delivered"} {
		_, err := s.svc.UpdateStatus(s.ctx, order.ID, st)
		s.Require().NoError(err, st)
	}

	for _, st := range domain.AllStatuses() {
		_, err := s.svc.UpdateStatus(s.ctx, order.ID, st.String())
		s.True(errors.Is(err, ErrInvalidTransition), "delivered -> %s", st)
	}
}

func (s *OrderServiceSuite) TestUpdateStatus_PendingToShippedRejected() {
	order, a, _ := s.placeOrder()
	queued := s.count(&outbox.Record{})

	_, err := s.svc.UpdateStatus(s.ctx, order.ID, "shipped")
	var te *TransitionError
	s.Require().True(errors.As(err, &te))
	s.Equal(domain.StatusPending, te.From)
	s.Equal(domain.StatusShipped, te.To)

	stored, err := s.svc.GetOrder(s.ctx, order.ID, uuid.Nil)
	s.Require().NoError(err)
	s.Equal(domain.StatusPending, stored.Status)
	s.EqualValues(8, s.reload(a.ID).Stock)
	s.Equal(queued, s.count(&outbox.Record{}))
}

func (s *OrderServiceSuite) TestUpdateStatus_BadInput() {
	_, err := s.svc.UpdateStatus(s.ctx, uuid.New(), "confirmed")
	s.True(errors.Is(err, ErrNotFound), "got %v", err)

	order, _, _ := s.placeOrder()
	_, err = s.svc.UpdateStatus(s.ctx, order.ID, "canceled")
	s.True(errors.Is(err, ErrValidation), "got %v", err)
}

func (s *OrderServiceSuite) TestCancel_RestoresSnapshotQuantities() {
	order, a, b := s.placeOrder()

	_, err := s.svc.UpdateStatus(s.ctx, order.ID, "confirmed")
	s.Require().NoError(err)

	// a restock and a price change after checkout must not skew the restore
	s.Require().NoError(s.db.Model(&models.Product{}).Where("id = ?", a.ID).
		Updates(map[string]any{"stock": 50, "price": 1}).Error)

	cancelled, err := s.svc.UpdateStatus(s.ctx, order.ID, "cancelled")
	s.Require().NoError(err)
	s.Equal(domain.StatusCancelled, cancelled.Status)

	pa, pb := s.reload(a.ID), s.reload(b.ID)
	s.EqualValues(52, pa.Stock)
	s.EqualValues(0, pa.Sold)
	s.EqualValues(5, pb.Stock)
	s.EqualValues(0, pb.Sold)

	_, err = s.svc.UpdateStatus(s.ctx, order.ID, "cancelled")
	s.True(errors.Is(err, ErrInvalidTransition))
	s.EqualValues(52, s.reload(a.ID).Stock, "terminal cancel restores nothing twice")
}

func (s *OrderServiceSuite) TestCancel_SkipsDeletedProducts() {
	order, a, b := s.placeOrder()
	s.Require().NoError(s.db.Delete(&models.Product{}, "id = ?", b.ID).Error)

	_, err := s.svc.UpdateStatus(s.ctx, order.ID, "cancelled")
	s.Require().NoError(err)
	s.EqualValues(10, s.reload(a.ID).Stock)
}

func (s *OrderServiceSuite) TestCancelOrder_OwnerScoped() {
	order, a, _ := s.placeOrder()

	_, err := s.svc.CancelOrder(s.ctx, order.ID, uuid.New())
	s.True(errors.Is(err, ErrNotFound))
	s.EqualValues(8, s.reload(a.ID).Stock)

	cancelled, err := s.svc.CancelOrder(s.ctx, order.ID, s.user)
	s.Require().NoError(err)
	s.Equal(domain.StatusCancelled, cancelled.Status)
	s.EqualValues(10, s.reload(a.ID).Stock)
}

func (s *OrderServiceSuite) TestGetOrder_OwnerScoped() {
	order, _, _ := s.placeOrder()

	_, err := s.svc.GetOrder(s.ctx, order.ID, uuid.New())
	s.True(errors.Is(err, ErrNotFound))

	got, err := s.svc.GetOrder(s.ctx, order.ID, s.user)
	s.Require().NoError(err)
	s.Equal(order.ID, got.ID)
}

func (s *OrderServiceSuite) TestListing_AndStats() {
	p := s.product("Moonwatch", 100, 100, true)
	other := uuid.New()

	var mine []uuid.UUID
	for i := 0; i < 3; i++ {
		s.addToCart(s.user, p.ID, 1)
		o, err := s.svc.CreateOrder(s.ctx, s.user, s.details())
		s.Require().NoError(err)
		mine = append(mine, o.ID)
	}
	s.addToCart(other, p.ID, 2)
	_, err := s.svc.CreateOrder(s.ctx, other, s.details())
	s.Require().NoError(err)

	for _, st := range []string{"confirmed", "processing", "shipped", "delivered"} {
		_, err := s.svc.UpdateStatus(s.ctx, mine[0], st)
		s.Require().NoError(err)
	}
	_, err = s.svc.CancelOrder(s.ctx, mine[1], s.user)
	s.Require().NoError(err)

	page, err := s.svc.ListMyOrders(s.ctx, s.user, 1, 2)
	s.Require().NoError(err)
	s.Len(page.Data, 2)
	s.EqualValues(3, page.Meta.Total)
	s.EqualValues(2, page.Meta.TotalPages)
	s.True(page.Meta.HasNext)
	s.False(page.Meta.HasPrev)
	for _, o := range page.Data {
		s.Equal(s.user, o.UserID)
		s.NotEmpty(o.Items)
	}

	all, err := s.svc.ListAllOrders(s.ctx, "", 1, 10)
	s.Require().NoError(err)
	s.EqualValues(4, all.Meta.Total)

	pending, err := s.svc.ListAllOrders(s.ctx, "pending", 1, 10)
	s.Require().NoError(err)
	s.EqualValues(2, pending.Meta.Total)

	_, err = s.svc.ListAllOrders(s.ctx, "lost", 1, 10)
	s.True(errors.Is(err, ErrValidation))

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(4, stats.TotalOrders)
	s.EqualValues(100, stats.TotalRevenue)
	s.Len(stats.ByStatus, len(domain.AllStatuses()))
	for _, row := range stats.ByStatus {
		switch row.Status {
		case domain.StatusPending:
			s.EqualValues(2, row.Count)
			s.EqualValues(300, row.TotalAmount)
		case domain.StatusCancelled, domain.StatusDelivered:
			s.EqualValues(1, row.Count)
		default:
			s.Zero(row.Count)
		}
	}
}
