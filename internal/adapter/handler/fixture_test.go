package handler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/beverage-store/internal/adapter/storage"
	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/core/service"
)

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store      *storage.MemoryAdapter
	carts      *service.CartService
	catalog    *service.CatalogService
	orders     *service.OrderService
	addresses  *service.AddressService
	dispatcher *service.InvoiceDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryAdapter()
	require.NoError(t, store.PutBeverage(domain.Beverage{
		ID: 1, Kind: domain.KindBottle, Name: "Pils", Price: decimal.RequireFromString("1.50"), InStock: 10,
		Volume: decimal.RequireFromString("0.5"), VolumePercent: decimal.RequireFromString("4.9"), Supplier: "Brewery",
	}))
	require.NoError(t, store.PutBeverage(domain.Beverage{
		ID: 7, Kind: domain.KindCrate, Name: "Pils Crate", Price: decimal.RequireFromString("10.75"), InStock: 3,
		NoOfBottles: 20, BottleID: 1,
	}))
	store.PutCustomer(domain.Customer{ID: 1, Username: "ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	store.PutAddress(domain.Address{ID: 1, CustomerID: 1, Street: "Main", HouseNumber: "1", PostalCode: "96047"})

	dispatcher := service.NewInvoiceDispatcher(service.InvoiceSinks{Archive: store}, 8, time.Second, zap.NewNop(), nil)
	dispatcher.Start(1)
	t.Cleanup(dispatcher.Close)

	return &fixture{
		store: store,
		carts: service.NewCartService(store, store, service.SessionOptions{
			TTL: time.Hour, LockTTL: time.Second, LockWait: 100 * time.Millisecond,
		}, nil),
		catalog:    service.NewCatalogService(store),
		orders:     service.NewOrderService(store, store, dispatcher, service.WithClock(func() time.Time { return fixedNow })),
		addresses:  service.NewAddressService(store),
		dispatcher: dispatcher,
	}
}
