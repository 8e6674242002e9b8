package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/beverage-store/internal/adapter/storage"
	"github.com/rl1809/beverage-store/internal/core/domain"
)

var fixedNow = time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

// newStore seeds crate 7 (10.0, stock 5), bottle 3 (1.5, stock 10),
// customer 1 and addresses 1 and 2.
func newStore(t *testing.T) *storage.MemoryAdapter {
	t.Helper()
	store := storage.NewMemoryAdapter()
	require.NoError(t, store.PutBeverage(domain.Beverage{
		ID: 7, Kind: domain.KindCrate, Name: "Helles Crate", Price: decimal.RequireFromString("10.0"), InStock: 5,
		NoOfBottles: 20, BottleID: 3,
	}))
	require.NoError(t, store.PutBeverage(domain.Beverage{
		ID: 3, Kind: domain.KindBottle, Name: "Helles", Price: decimal.RequireFromString("1.5"), InStock: 10,
		Volume: decimal.RequireFromString("0.5"), VolumePercent: decimal.RequireFromString("4.8"), Supplier: "Brewery",
	}))
	store.PutCustomer(domain.Customer{ID: 1, Username: "ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	store.PutAddress(domain.Address{ID: 1, CustomerID: 1, Name: "home", Street: "Main", HouseNumber: "1", PostalCode: "96047"})
	store.PutAddress(domain.Address{ID: 2, CustomerID: 1, Name: "office", Street: "Side", HouseNumber: "2", PostalCode: "96050"})
	return store
}

// fakeQueue records enqueued invoices.
type fakeQueue struct {
	mu       sync.Mutex
	invoices []domain.Invoice
	reject   bool
}

func (q *fakeQueue) Enqueue(inv domain.Invoice) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return false
	}
	q.invoices = append(q.invoices, inv)
	return true
}

func (q *fakeQueue) all() []domain.Invoice {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.Invoice(nil), q.invoices...)
}

// fakeSink implements every invoice sink and records calls in order.
type fakeSink struct {
	mu     sync.Mutex
	calls  []string
	events []domain.OrderPlacedEvent
	fail   map[string]error
	block  map[string]bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{fail: map[string]error{}, block: map[string]bool{}}
}

func (f *fakeSink) record(ctx context.Context, sink string) error {
	f.mu.Lock()
	f.calls = append(f.calls, sink)
	err, blocked := f.fail[sink], f.block[sink]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeSink) StoreInvoice(ctx context.Context, _ domain.Invoice) error {
	return f.record(ctx, SinkArchive)
}

func (f *fakeSink) GenerateInvoice(ctx context.Context, _ domain.Invoice) error {
	return f.record(ctx, SinkGenerator)
}

func (f *fakeSink) PublishOrderPlaced(ctx context.Context, ev domain.OrderPlacedEvent) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return f.record(ctx, SinkPublisher)
}

func (f *fakeSink) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// brokenUnlockSessions wraps a session store and fails every unlock.
type brokenUnlockSessions struct {
	*storage.MemoryAdapter
	err error
}

func (b *brokenUnlockSessions) LockSession(ctx context.Context, sessionID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	unlock, ok, err := b.MemoryAdapter.LockSession(ctx, sessionID, ttl)
	if !ok || err != nil {
		return unlock, ok, err
	}
	return func(ctx context.Context) error {
		_ = unlock(ctx)
		return b.err
	}, true, nil
}

// failingSaveSessions wraps a session store. SaveCart honours a cancelled
// context and fails with err while err is set.
type failingSaveSessions struct {
	*storage.MemoryAdapter
	mu  sync.Mutex
	err error
}

func (f *failingSaveSessions) SaveCart(ctx context.Context, cart *domain.Cart, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryAdapter.SaveCart(ctx, cart, ttl)
}

func (f *failingSaveSessions) failSaves(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}
