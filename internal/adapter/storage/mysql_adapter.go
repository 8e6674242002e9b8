package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/port"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates the tables when they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) InTx(ctx context.Context, fn func(repo port.CheckoutRepository) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlCheckoutRepo{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetBeverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	return getBeverageRow(ctx, m.db, kind, id)
}

func (m *MySQLAdapter) ListBeverages(ctx context.Context, kind domain.BeverageKind, page, size int) ([]domain.Beverage, error) {
	var query string
	switch kind {
	case domain.KindBottle:
		query = `SELECT id, name, pic_url, price, in_stock, volume, volume_percent, supplier
			FROM bottles ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`
	case domain.KindCrate:
		query = `SELECT id, name, pic_url, price, in_stock, no_of_bottles, COALESCE(bottle_id, 0)
			FROM crates ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`
	default:
		return nil, fmt.Errorf("beverage kind %q: %w", kind, domain.ErrInvalidOperation)
	}

	rows, err := m.db.QueryContext(ctx, query, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	defer rows.Close()

	out := []domain.Beverage{}
	for rows.Next() {
		b, err := scanBeverage(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) IncreaseStock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int) error {
	table, err := beverageTable(kind)
	if err != nil {
		return err
	}
	result, err := m.db.ExecContext(ctx,
		`UPDATE `+table+` SET in_stock = in_stock + ? WHERE id = ?`, quantity, id)
	if err != nil {
		return fmt.Errorf("increase stock: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

func (m *MySQLAdapter) CreateBeverage(ctx context.Context, b domain.Beverage) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	switch b.Kind {
	case domain.KindBottle:
		result, err = m.db.ExecContext(ctx, `
			INSERT INTO bottles (name, pic_url, volume, volume_percent, price, supplier, in_stock)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.Name, b.PicURL, b.Volume, b.VolumePercent, b.Price, b.Supplier, b.InStock,
		)
	case domain.KindCrate:
		result, err = m.db.ExecContext(ctx, `
			INSERT INTO crates (name, pic_url, no_of_bottles, price, in_stock, bottle_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			b.Name, b.PicURL, b.NoOfBottles, b.Price, b.InStock, b.BottleID,
		)
	default:
		return 0, fmt.Errorf("beverage kind %q: %w", b.Kind, domain.ErrInvalidOperation)
	}
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", b.Kind, err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) UpdateBeverage(ctx context.Context, b domain.Beverage) error {
	// affected rows only count changed rows, so check presence first
	if _, err := getBeverageRow(ctx, m.db, b.Kind, b.ID); err != nil {
		return err
	}

	var err error
	switch b.Kind {
	case domain.KindBottle:
		_, err = m.db.ExecContext(ctx, `
			UPDATE bottles SET name = ?, pic_url = ?, volume = ?, volume_percent = ?, price = ?, supplier = ?
			WHERE id = ?`,
			b.Name, b.PicURL, b.Volume, b.VolumePercent, b.Price, b.Supplier, b.ID,
		)
	case domain.KindCrate:
		_, err = m.db.ExecContext(ctx, `
			UPDATE crates SET name = ?, pic_url = ?, no_of_bottles = ?, price = ?, bottle_id = ?
			WHERE id = ?`,
			b.Name, b.PicURL, b.NoOfBottles, b.Price, b.BottleID, b.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", b.Kind, err)
	}
	return nil
}

func (m *MySQLAdapter) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	return (&mysqlCheckoutRepo{q: m.db}).GetCustomer(ctx, customerID)
}

func (m *MySQLAdapter) GetAddress(ctx context.Context, addressID int64) (*domain.Address, error) {
	return (&mysqlCheckoutRepo{q: m.db}).GetAddress(ctx, addressID)
}

func (m *MySQLAdapter) ListAddresses(ctx context.Context, customerID int64) ([]domain.Address, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, customer_id, name, street, house_number, postal_code
		FROM addresses WHERE customer_id = ? ORDER BY id ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("query addresses: %w", err)
	}
	defer rows.Close()

	out := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Name, &a.Street, &a.HouseNumber, &a.PostalCode); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) CreateAddress(ctx context.Context, a domain.Address) (int64, error) {
	if _, err := m.GetCustomer(ctx, a.CustomerID); err != nil {
		return 0, err
	}
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO addresses (customer_id, name, street, house_number, postal_code)
		VALUES (?, ?, ?, ?, ?)`,
		a.CustomerID, a.Name, a.Street, a.HouseNumber, a.PostalCode,
	)
	if err != nil {
		return 0, fmt.Errorf("insert address: %w", err)
	}
	return result.LastInsertId()
}

func (m *MySQLAdapter) UpdateAddress(ctx context.Context, a domain.Address) error {
	if _, err := m.GetAddress(ctx, a.ID); err != nil {
		return err
	}
	_, err := m.db.ExecContext(ctx, `
		UPDATE addresses SET name = ?, street = ?, house_number = ?, postal_code = ?
		WHERE id = ?`,
		a.Name, a.Street, a.HouseNumber, a.PostalCode, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, order_number, order_date, total_price, customer_id, delivery_address_id, billing_address_id
		FROM orders WHERE order_number = ?`, number)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", number, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (m *MySQLAdapter) ListOrdersByCustomer(ctx context.Context, customerID int64, page, size int) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_number, order_date, total_price, customer_id, delivery_address_id, billing_address_id
		FROM orders WHERE customer_id = ? AND order_number IS NOT NULL
		ORDER BY order_number ASC LIMIT ? OFFSET ?`,
		customerID, size, (page-1)*size,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type orderItemRow struct {
	position int
	quantity int
	kind     domain.BeverageKind
	bottleID sql.NullInt64
	crateID  sql.NullInt64
}

func (m *MySQLAdapter) ListOrderLines(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT position, quantity, beverage_type, bottle_id, crate_id
		FROM order_items WHERE order_id = ? ORDER BY position ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}

	var items []orderItemRow
	for rows.Next() {
		var r orderItemRow
		if err := rows.Scan(&r.position, &r.quantity, &r.kind, &r.bottleID, &r.crateID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(items))
	for _, r := range items {
		kind, id, err := domain.DecodeRef(r.kind, nullablePtr(r.bottleID), nullablePtr(r.crateID))
		if err != nil {
			return nil, fmt.Errorf("order %d position %d: %w", orderID, r.position, err)
		}
		b, err := getBeverageRow(ctx, m.db, kind, id)
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

type mysqlCheckoutRepo struct {
	q querier
}

func (r *mysqlCheckoutRepo) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, email
		FROM customers WHERE id = ?`, customerID,
	).Scan(&c.ID, &c.Username, &c.FirstName, &c.LastName, &c.Email)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", customerID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (r *mysqlCheckoutRepo) GetAddress(ctx context.Context, addressID int64) (*domain.Address, error) {
	var a domain.Address
	err := r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, name, street, house_number, postal_code
		FROM addresses WHERE id = ?`, addressID,
	).Scan(&a.ID, &a.CustomerID, &a.Name, &a.Street, &a.HouseNumber, &a.PostalCode)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("address %d: %w", addressID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query address: %w", err)
	}
	return &a, nil
}

func (r *mysqlCheckoutRepo) GetBeverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	return getBeverageRow(ctx, r.q, kind, id)
}

func (r *mysqlCheckoutRepo) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	result, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (order_number, order_date, total_price, customer_id, delivery_address_id, billing_address_id)
		VALUES (NULL, ?, ?, ?, ?, ?)`,
		order.Date, order.TotalPrice, order.CustomerID, order.DeliveryAddressID, order.BillingAddressID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order id: %w", err)
	}
	return id, nil
}

func (r *mysqlCheckoutRepo) UpdateOrderNumber(ctx context.Context, orderID int64, number string) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE orders SET order_number = ? WHERE id = ?`, number, orderID)
	if err != nil {
		return fmt.Errorf("update order number: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("order %d: %w", orderID, domain.ErrNotFound)
	}
	return nil
}

func (r *mysqlCheckoutRepo) InsertOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_items (order_id, position, beverage_type, quantity, bottle_id, crate_id) VALUES `)
	args := make([]any, 0, len(lines)*6)
	for i, l := range lines {
		if !l.Item.Valid() {
			return fmt.Errorf("order %d position %d: %w", orderID, l.Position, domain.ErrMalformedLine)
		}
		var bottleID, crateID sql.NullInt64
		if id, ok := l.Item.BottleID(); ok {
			bottleID = sql.NullInt64{Int64: id, Valid: true}
		}
		if id, ok := l.Item.CrateID(); ok {
			crateID = sql.NullInt64{Int64: id, Valid: true}
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, orderID, l.Position, string(l.Item.Kind()), l.Quantity, bottleID, crateID)
	}

	if _, err := r.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *mysqlCheckoutRepo) DecreaseStock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int, guarded bool) error {
	table, err := beverageTable(kind)
	if err != nil {
		return err
	}

	query := `UPDATE ` + table + ` SET in_stock = in_stock - ? WHERE id = ?`
	args := []any{quantity, id}
	if guarded {
		query += ` AND in_stock >= ?`
		args = append(args, quantity)
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("decrease stock: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	if _, err := getBeverageRow(ctx, r.q, kind, id); err != nil {
		return err
	}
	return fmt.Errorf("%s %d: %w", kind, id, domain.ErrStockExhausted)
}

func beverageTable(kind domain.BeverageKind) (string, error) {
	switch kind {
	case domain.KindBottle:
		return "bottles", nil
	case domain.KindCrate:
		return "crates", nil
	}
	return "", fmt.Errorf("beverage kind %q: %w", kind, domain.ErrInvalidOperation)
}

func getBeverageRow(ctx context.Context, q querier, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	var query string
	switch kind {
	case domain.KindBottle:
		query = `SELECT id, name, pic_url, price, in_stock, volume, volume_percent, supplier
			FROM bottles WHERE id = ?`
	case domain.KindCrate:
		query = `SELECT id, name, pic_url, price, in_stock, no_of_bottles, COALESCE(bottle_id, 0)
			FROM crates WHERE id = ?`
	default:
		return nil, fmt.Errorf("beverage kind %q: %w", kind, domain.ErrInvalidOperation)
	}

	b, err := scanBeverage(q.QueryRowContext(ctx, query, id), kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	return b, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBeverage(s scanner, kind domain.BeverageKind) (*domain.Beverage, error) {
	b := domain.Beverage{Kind: kind}
	var err error
	if kind == domain.KindBottle {
		err = s.Scan(&b.ID, &b.Name, &b.PicURL, &b.Price, &b.InStock, &b.Volume, &b.VolumePercent, &b.Supplier)
	} else {
		err = s.Scan(&b.ID, &b.Name, &b.PicURL, &b.Price, &b.InStock, &b.NoOfBottles, &b.BottleID)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o      domain.Order
		number sql.NullString
	)
	if err := s.Scan(&o.ID, &number, &o.Date, &o.TotalPrice, &o.CustomerID, &o.DeliveryAddressID, &o.BillingAddressID); err != nil {
		return nil, err
	}
	o.OrderNumber = number.String
	return &o, nil
}

func nullablePtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
