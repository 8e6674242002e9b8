package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/port"
)

type memOrderLine struct {
	position int
	quantity int
	kind     domain.BeverageKind
	bottleID *int64
	crateID  *int64
}

type memState struct {
	bottles     map[int64]domain.Beverage
	crates      map[int64]domain.Beverage
	customers   map[int64]domain.Customer
	addresses   map[int64]domain.Address
	orders      map[int64]domain.Order
	orderLines  map[int64][]memOrderLine
	nextOrderID int64
}

func (s *memState) clone() *memState {
	c := &memState{
		bottles:     make(map[int64]domain.Beverage, len(s.bottles)),
		crates:      make(map[int64]domain.Beverage, len(s.crates)),
		customers:   s.customers,
		addresses:   s.addresses,
		orders:      make(map[int64]domain.Order, len(s.orders)),
		orderLines:  make(map[int64][]memOrderLine, len(s.orderLines)),
		nextOrderID: s.nextOrderID,
	}
	for k, v := range s.bottles {
		c.bottles[k] = v
	}
	for k, v := range s.crates {
		c.crates[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderLines {
		c.orderLines[k] = v
	}
	return c
}

func (s *memState) table(kind domain.BeverageKind) (map[int64]domain.Beverage, error) {
	switch kind {
	case domain.KindBottle:
		return s.bottles, nil
	case domain.KindCrate:
		return s.crates, nil
	}
	return nil, fmt.Errorf("beverage kind %q: %w", kind, domain.ErrInvalidOperation)
}

// MemoryAdapter keeps the ledger, orders and sessions in process memory.
// Transactions work on a copy of the state that replaces the original on
// commit, so a failed InTx leaves no trace.
type MemoryAdapter struct {
	mu    sync.RWMutex
	state *memState

	sessMu   sync.Mutex
	sessions map[string]memSession
	locks    map[string]memLock
	invoices map[string][]byte
}

type memSession struct {
	payload   []byte
	expiresAt time.Time
}

type memLock struct {
	token     string
	expiresAt time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		state: &memState{
			bottles:     make(map[int64]domain.Beverage),
			crates:      make(map[int64]domain.Beverage),
			customers:   make(map[int64]domain.Customer),
			addresses:   make(map[int64]domain.Address),
			orders:      make(map[int64]domain.Order),
			orderLines:  make(map[int64][]memOrderLine),
			nextOrderID: 1,
		},
		sessions: make(map[string]memSession),
		locks:    make(map[string]memLock),
		invoices: make(map[string][]byte),
	}
}

// PutBeverage inserts or replaces a catalog entry.
func (m *MemoryAdapter) PutBeverage(b domain.Beverage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.state.table(b.Kind)
	if err != nil {
		return err
	}
	table[b.ID] = b
	return nil
}

func (m *MemoryAdapter) PutCustomer(c domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.customers[c.ID] = c
}

func (m *MemoryAdapter) PutAddress(a domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.addresses[a.ID] = a
}

// Stock returns the raw ledger count.
func (m *MemoryAdapter) Stock(kind domain.BeverageKind, id int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.state.table(kind)
	if err != nil {
		return 0
	}
	return table[id].InStock
}

func (m *MemoryAdapter) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.state.orders)
}

func (m *MemoryAdapter) OrderLineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, lines := range m.state.orderLines {
		n += len(lines)
	}
	return n
}

func (m *MemoryAdapter) GetBeverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getBeverage(m.state, kind, id)
}

func (m *MemoryAdapter) ListBeverages(ctx context.Context, kind domain.BeverageKind, page, size int) ([]domain.Beverage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.state.table(kind)
	if err != nil {
		return nil, err
	}
	all := make([]domain.Beverage, 0, len(table))
	for _, b := range table {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name == all[j].Name {
			return all[i].ID < all[j].ID
		}
		return all[i].Name < all[j].Name
	})

	from := (page - 1) * size
	if from >= len(all) {
		return []domain.Beverage{}, nil
	}
	to := from + size
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], nil
}

func (m *MemoryAdapter) IncreaseStock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.state.table(kind)
	if err != nil {
		return err
	}
	b, ok := table[id]
	if !ok {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	b.InStock += quantity
	table[id] = b
	return nil
}

func (m *MemoryAdapter) CreateBeverage(ctx context.Context, b domain.Beverage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.state.table(b.Kind)
	if err != nil {
		return 0, err
	}
	var id int64
	for existing := range table {
		if existing > id {
			id = existing
		}
	}
	b.ID = id + 1
	table[b.ID] = b
	return b.ID, nil
}

func (m *MemoryAdapter) UpdateBeverage(ctx context.Context, b domain.Beverage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.state.table(b.Kind)
	if err != nil {
		return err
	}
	current, ok := table[b.ID]
	if !ok {
		return fmt.Errorf("%s %d: %w", b.Kind, b.ID, domain.ErrNotFound)
	}
	b.InStock = current.InStock
	table[b.ID] = b
	return nil
}

func (m *MemoryAdapter) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memCheckoutRepo{state: m.state}).GetCustomer(ctx, customerID)
}

func (m *MemoryAdapter) GetAddress(ctx context.Context, addressID int64) (*domain.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memCheckoutRepo{state: m.state}).GetAddress(ctx, addressID)
}

func (m *MemoryAdapter) ListAddresses(ctx context.Context, customerID int64) ([]domain.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.Address{}
	for _, a := range m.state.addresses {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) CreateAddress(ctx context.Context, a domain.Address) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.customers[a.CustomerID]; !ok {
		return 0, fmt.Errorf("customer %d: %w", a.CustomerID, domain.ErrNotFound)
	}
	var id int64
	for existing := range m.state.addresses {
		if existing > id {
			id = existing
		}
	}
	a.ID = id + 1
	m.state.addresses[a.ID] = a
	return a.ID, nil
}

func (m *MemoryAdapter) UpdateAddress(ctx context.Context, a domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.state.addresses[a.ID]
	if !ok {
		return fmt.Errorf("address %d: %w", a.ID, domain.ErrNotFound)
	}
	current.Name = a.Name
	current.Street = a.Street
	current.HouseNumber = a.HouseNumber
	current.PostalCode = a.PostalCode
	m.state.addresses[a.ID] = current
	return nil
}

func (m *MemoryAdapter) InTx(ctx context.Context, fn func(repo port.CheckoutRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memCheckoutRepo{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryAdapter) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.state.orders {
		if o.OrderNumber == number {
			out := o
			return &out, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", number, domain.ErrNotFound)
}

func (m *MemoryAdapter) ListOrdersByCustomer(ctx context.Context, customerID int64, page, size int) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []domain.Order
	for _, o := range m.state.orders {
		if o.CustomerID == customerID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderNumber < orders[j].OrderNumber })

	from := (page - 1) * size
	if from >= len(orders) {
		return []domain.Order{}, nil
	}
	to := from + size
	if to > len(orders) {
		to = len(orders)
	}
	return orders[from:to], nil
}

func (m *MemoryAdapter) ListOrderLines(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.state.orderLines[orderID]
	lines := make([]domain.OrderLine, 0, len(rows))
	for _, r := range rows {
		kind, id, err := domain.DecodeRef(r.kind, r.bottleID, r.crateID)
		if err != nil {
			return nil, fmt.Errorf("order %d position %d: %w", orderID, r.position, err)
		}
		b, err := getBeverage(m.state, kind, id)
		if err != nil {
			return nil, err
		}
		ref, err := domain.RefTo(*b)
		if err != nil {
			return nil, err
		}
		lines = append(lines, domain.OrderLine{Position: r.position, Quantity: r.quantity, Item: ref})
	}
	return lines, nil
}

func (m *MemoryAdapter) LoadCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || time.Now().After(s.expiresAt) {
		delete(m.sessions, sessionID)
		return nil, nil
	}
	var cart domain.Cart
	if err := json.Unmarshal(s.payload, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, nil
}

func (m *MemoryAdapter) SaveCart(ctx context.Context, cart *domain.Cart, ttl time.Duration) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	m.sessions[cart.SessionID] = memSession{payload: payload, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryAdapter) DeleteCart(ctx context.Context, sessionID string) error {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryAdapter) LockSession(ctx context.Context, sessionID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()

	if l, ok := m.locks[sessionID]; ok && time.Now().Before(l.expiresAt) {
		return nil, false, nil
	}
	token := uuid.NewString()
	m.locks[sessionID] = memLock{token: token, expiresAt: time.Now().Add(ttl)}

	return func(context.Context) error {
		m.sessMu.Lock()
		defer m.sessMu.Unlock()
		if l, ok := m.locks[sessionID]; ok && l.token == token {
			delete(m.locks, sessionID)
		}
		return nil
	}, true, nil
}

func (m *MemoryAdapter) StoreInvoice(ctx context.Context, invoice domain.Invoice) error {
	payload, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}

	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	m.invoices[invoice.OrderNumber] = payload
	return nil
}

func (m *MemoryAdapter) ArchivedInvoice(ctx context.Context, orderNumber string) (*domain.Invoice, error) {
	m.sessMu.Lock()
	payload, ok := m.invoices[orderNumber]
	m.sessMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", orderNumber, domain.ErrNotFound)
	}

	var inv domain.Invoice
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &inv, nil
}

type memCheckoutRepo struct {
	state *memState
}

func (r *memCheckoutRepo) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	c, ok := r.state.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %d: %w", customerID, domain.ErrNotFound)
	}
	return &c, nil
}

func (r *memCheckoutRepo) GetAddress(ctx context.Context, addressID int64) (*domain.Address, error) {
	a, ok := r.state.addresses[addressID]
	if !ok {
		return nil, fmt.Errorf("address %d: %w", addressID, domain.ErrNotFound)
	}
	return &a, nil
}

func (r *memCheckoutRepo) GetBeverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	return getBeverage(r.state, kind, id)
}

func (r *memCheckoutRepo) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	id := r.state.nextOrderID
	r.state.nextOrderID++
	order.ID = id
	order.OrderNumber = ""
	order.Lines = nil
	r.state.orders[id] = order
	return id, nil
}

func (r *memCheckoutRepo) UpdateOrderNumber(ctx context.Context, orderID int64, number string) error {
	o, ok := r.state.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	o.OrderNumber = number
	r.state.orders[orderID] = o
	return nil
}

func (r *memCheckoutRepo) InsertOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error {
	rows := make([]memOrderLine, 0, len(lines))
	for _, l := range lines {
		if !l.Item.Valid() {
			return fmt.Errorf("order %d position %d: %w", orderID, l.Position, domain.ErrMalformedLine)
		}
		row := memOrderLine{position: l.Position, quantity: l.Quantity, kind: l.Item.Kind()}
		if id, ok := l.Item.BottleID(); ok {
			row.bottleID = &id
		}
		if id, ok := l.Item.CrateID(); ok {
			row.crateID = &id
		}
		rows = append(rows, row)
	}
	r.state.orderLines[orderID] = append(append([]memOrderLine{}, r.state.orderLines[orderID]...), rows...)
	return nil
}

func (r *memCheckoutRepo) DecreaseStock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int, guarded bool) error {
	table, err := r.state.table(kind)
	if err != nil {
		return err
	}
	b, ok := table[id]
	if !ok {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	if guarded && b.InStock < quantity {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrStockExhausted)
	}
	b.InStock -= quantity
	table[id] = b
	return nil
}

func getBeverage(s *memState, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	table, err := s.table(kind)
	if err != nil {
		return nil, err
	}
	b, ok := table[id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return &b, nil
}
