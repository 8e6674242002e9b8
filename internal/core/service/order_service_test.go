package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rl1809/beverage-store/internal/adapter/storage"
	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/pkg/metrics"
)

type OrderServiceSuite struct {
	suite.Suite
	store   *storage.MemoryAdapter
	queue   *fakeQueue
	metrics *metrics.Metrics
	carts   *CartService
	orders  *OrderService
	ctx     context.Context
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newStore(s.T())
	s.queue = &fakeQueue{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.carts = NewCartService(s.store, s.store, SessionOptions{TTL: time.Hour, LockTTL: time.Second, LockWait: time.Second}, s.metrics)
	s.orders = NewOrderService(s.store, s.store, s.queue,
		WithClock(func() time.Time { return fixedNow }),
		WithOrderMetrics(s.metrics),
	)
}

func (s *OrderServiceSuite) cartWith(items ...[3]int64) *domain.Cart {
	cart := domain.NewCart("sess")
	for _, it := range items {
		kind := domain.KindBottle
		if it[0] == 1 {
			kind = domain.KindCrate
		}
		_, err := s.carts.AddItem(s.ctx, cart, kind, it[1], int(it[2]))
		s.Require().NoError(err)
	}
	return cart
}

// crate/bottle markers for cartWith
const (
	bottleItem int64 = 0
	crateItem  int64 = 1
)

func (s *OrderServiceSuite) TestCreateOrder_Scenario() {
	cart := s.cartWith([3]int64{crateItem, 7, 2}, [3]int64{bottleItem, 3, 3})

	order, err := s.orders.CreateOrder(s.ctx, cart, 1, 1, 2)
	s.Require().NoError(err)

	s.True(order.TotalPrice.Equal(decimal.RequireFromString("24.5")), order.TotalPrice.String())
	s.Equal("ORD240300001", order.OrderNumber)
	s.Require().Len(order.Lines, 2)
	s.Equal(1, order.Lines[0].Position)
	s.Equal(domain.KindCrate, order.Lines[0].Item.Kind())
	s.Equal(2, order.Lines[1].Position)
	s.Equal(domain.KindBottle, order.Lines[1].Item.Kind())

	s.Equal(3, s.store.Stock(domain.KindCrate, 7))
	s.Equal(7, s.store.Stock(domain.KindBottle, 3))
	s.Zero(cart.ItemCount())
	s.True(cart.IsEmpty())

	stored, err := s.orders.GetOrder(s.ctx, "ORD240300001")
	s.Require().NoError(err)
	s.Len(stored.Lines, 2)
	s.Equal(int64(2), stored.BillingAddressID)

	invoices := s.queue.all()
	s.Require().Len(invoices, 1)
	s.Equal("ORD240300001", invoices[0].OrderNumber)
	s.Equal("Ada Lovelace", invoices[0].CustomerName)
	s.Equal("96050", invoices[0].BillingAddress.PostalCode)
	s.Len(invoices[0].Items, 2)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Checkouts.WithLabelValues(metrics.OutcomeSuccess)))
}

func (s *OrderServiceSuite) TestCreateOrder_EmptyCart() {
	_, err := s.orders.CreateOrder(s.ctx, domain.NewCart("sess"), 1, 1, 1)
	s.ErrorIs(err, domain.ErrInvalidOperation)
	s.Contains(err.Error(), "cart is empty")

	s.Zero(s.store.OrderCount())
	s.Equal(5, s.store.Stock(domain.KindCrate, 7))
	s.Empty(s.queue.all())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Checkouts.WithLabelValues(metrics.OutcomeFailure)))
}

func (s *OrderServiceSuite) TestCreateOrder_BadAddressLeavesNoTrace() {
	cart := s.cartWith([3]int64{crateItem, 7, 2})

	_, err := s.orders.CreateOrder(s.ctx, cart, 1, 404, 404)
	s.ErrorIs(err, domain.ErrNotFound)

	s.Zero(s.store.OrderCount())
	s.Zero(s.store.OrderLineCount())
	s.Equal(5, s.store.Stock(domain.KindCrate, 7))
	s.Equal(2, cart.ItemCount())
	s.Empty(s.queue.all())
}

func (s *OrderServiceSuite) TestCreateOrder_UnknownCustomer() {
	cart := s.cartWith([3]int64{bottleItem, 3, 1})

	_, err := s.orders.CreateOrder(s.ctx, cart, 99, 1, 1)
	s.ErrorIs(err, domain.ErrNotFound)
	s.Zero(s.store.OrderCount())
	s.Equal(1, cart.ItemCount())
}

func (s *OrderServiceSuite) TestCreateOrder_VanishedBeverageAborts() {
	cart := s.cartWith([3]int64{bottleItem, 3, 2})
	_, err := cart.Append(domain.NewCartLine(domain.Beverage{
		ID: 99, Kind: domain.KindCrate, Name: "Gone", Price: decimal.RequireFromString("5"), InStock: 10,
	}, 1))
	s.Require().NoError(err)

	_, err = s.orders.CreateOrder(s.ctx, cart, 1, 1, 1)
	s.ErrorIs(err, domain.ErrNotFound)

	s.Zero(s.store.OrderCount())
	s.Equal(10, s.store.Stock(domain.KindBottle, 3))
	s.Equal(3, cart.ItemCount())
}

func (s *OrderServiceSuite) TestCreateOrder_GuardedStockStopsAtZero() {
	s.Require().NoError(s.store.PutBeverage(domain.Beverage{
		ID: 8, Kind: domain.KindCrate, Name: "Last Crate", Price: decimal.RequireFromString("12"), InStock: 1,
	}))
	first := s.cartWith([3]int64{crateItem, 8, 1})
	second := s.cartWith([3]int64{crateItem, 8, 1})

	_, err := s.orders.CreateOrder(s.ctx, first, 1, 1, 1)
	s.Require().NoError(err)

	_, err = s.orders.CreateOrder(s.ctx, second, 1, 1, 1)
	s.ErrorIs(err, domain.ErrStockExhausted)

	s.Equal(0, s.store.Stock(domain.KindCrate, 8))
	s.Equal(1, s.store.OrderCount())
	s.Equal(1, second.ItemCount())
}

func (s *OrderServiceSuite) TestCreateOrder_UnguardedStockOversells() {
	orders := NewOrderService(s.store, s.store, s.queue, WithGuardedStock(false))
	s.Require().NoError(s.store.PutBeverage(domain.Beverage{
		ID: 8, Kind: domain.KindCrate, Name: "Last Crate", Price: decimal.RequireFromString("12"), InStock: 1,
	}))
	first := s.cartWith([3]int64{crateItem, 8, 1})
	second := s.cartWith([3]int64{crateItem, 8, 1})

	_, err := orders.CreateOrder(s.ctx, first, 1, 1, 1)
	s.Require().NoError(err)
	_, err = orders.CreateOrder(s.ctx, second, 1, 1, 1)
	s.Require().NoError(err)

	s.Equal(-1, s.store.Stock(domain.KindCrate, 8))
	s.Equal(2, s.store.OrderCount())
}

func (s *OrderServiceSuite) TestCreateOrder_DroppedInvoiceKeepsOrder() {
	s.queue.reject = true
	cart := s.cartWith([3]int64{bottleItem, 3, 1})

	order, err := s.orders.CreateOrder(s.ctx, cart, 1, 1, 1)
	s.Require().NoError(err)
	s.NotEmpty(order.OrderNumber)
	s.Equal(1, s.store.OrderCount())
	s.True(cart.IsEmpty())
}

func (s *OrderServiceSuite) TestCreateOrder_NumbersFollowIDs() {
	for i := 1; i <= 3; i++ {
		cart := s.cartWith([3]int64{bottleItem, 3, 1})
		order, err := s.orders.CreateOrder(s.ctx, cart, 1, 1, 1)
		s.Require().NoError(err)
		want, err := domain.GenerateOrderNumber(order.ID, fixedNow)
		s.Require().NoError(err)
		s.Equal(want, order.OrderNumber)
	}

	list, err := s.orders.ListOrders(s.ctx, 1, 1, 2)
	s.Require().NoError(err)
	s.Len(list, 2)
	s.Equal("ORD240300001", list[0].OrderNumber)

	_, err = s.orders.ListOrders(s.ctx, 1, 0, 2)
	s.ErrorIs(err, domain.ErrInvalidOperation)
}

func (s *OrderServiceSuite) TestResendInvoice() {
	cart := s.cartWith([3]int64{crateItem, 7, 1})
	order, err := s.orders.CreateOrder(s.ctx, cart, 1, 1, 2)
	s.Require().NoError(err)

	inv, queued, err := s.orders.ResendInvoice(s.ctx, order.OrderNumber)
	s.Require().NoError(err)
	s.True(queued)
	s.Equal(order.OrderNumber, inv.OrderNumber)
	s.Equal("2024-03-05", inv.OrderDate)
	s.Len(s.queue.all(), 2)

	_, _, err = s.orders.ResendInvoice(s.ctx, "ORD000000000")
	s.ErrorIs(err, domain.ErrNotFound)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(domain.ErrNotFound))
	assert.True(t, IsClientError(domain.ErrStockExhausted))
	assert.False(t, IsClientError(domain.ErrMalformedLine))
	assert.False(t, IsClientError(context.DeadlineExceeded))
}

func TestCreateOrder_NilQueue(t *testing.T) {
	store := newStore(t)
	carts := NewCartService(store, store, SessionOptions{}, nil)
	orders := NewOrderService(store, store, nil)

	cart := domain.NewCart("s")
	_, err := carts.AddItem(context.Background(), cart, domain.KindBottle, 3, 2)
	require.NoError(t, err)

	_, err = orders.CreateOrder(context.Background(), cart, 1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, store.Stock(domain.KindBottle, 3))
}
