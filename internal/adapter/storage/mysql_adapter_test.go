package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/port"
)

const fixtureID = 9001

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/beverage_store?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return db
}

// setupMySQL migrates the schema and resets one bottle, one crate, one
// customer and one address under fixtureID.
func setupMySQL(t *testing.T) (*sql.DB, *MySQLAdapter) {
	db := getMySQLDB(t)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	stmts := []string{
		`DELETE FROM orders WHERE customer_id = 9001`,
		`INSERT INTO bottles (id, name, price, in_stock, volume, volume_percent, supplier)
			VALUES (9001, 'IT Pils', 1.50, 5, 0.5, 4.9, 'IT Brewery')
			ON DUPLICATE KEY UPDATE in_stock = 5, price = 1.50`,
		`INSERT INTO crates (id, name, price, in_stock, no_of_bottles, bottle_id)
			VALUES (9001, 'IT Pils Crate', 10.75, 2, 20, 9001)
			ON DUPLICATE KEY UPDATE in_stock = 2, price = 10.75`,
		`INSERT INTO customers (id, username, first_name, last_name, email)
			VALUES (9001, 'it-9001', 'Ada', 'Lovelace', 'ada@example.com')
			ON DUPLICATE KEY UPDATE email = 'ada@example.com'`,
		`INSERT INTO addresses (id, customer_id, name, street, house_number, postal_code)
			VALUES (9001, 9001, 'home', 'Main', '1', '96047')
			ON DUPLICATE KEY UPDATE street = 'Main'`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	t.Cleanup(func() {
		db.ExecContext(context.Background(), `DELETE FROM orders WHERE customer_id = 9001`)
	})
	return db, adapter
}

func TestMySQL_CheckoutTransaction(t *testing.T) {
	_, adapter := setupMySQL(t)
	ctx := context.Background()

	bottle, err := adapter.GetBeverage(ctx, domain.KindBottle, fixtureID)
	if err != nil {
		t.Fatalf("GetBeverage failed: %v", err)
	}
	crate, err := adapter.GetBeverage(ctx, domain.KindCrate, fixtureID)
	if err != nil {
		t.Fatalf("GetBeverage failed: %v", err)
	}
	if crate.BottleID != fixtureID || crate.NoOfBottles != 20 {
		t.Errorf("unexpected crate: %+v", crate)
	}

	var number string
	err = adapter.InTx(ctx, func(repo port.CheckoutRepository) error {
		now := time.Now()
		id, err := repo.InsertOrder(ctx, domain.Order{
			Date:              now,
			TotalPrice:        decimal.RequireFromString("13.75"),
			CustomerID:        fixtureID,
			DeliveryAddressID: fixtureID,
			BillingAddressID:  fixtureID,
		})
		if err != nil {
			return err
		}

		bottleRef, _ := domain.RefTo(*bottle)
		crateRef, _ := domain.RefTo(*crate)
		if err := repo.InsertOrderLines(ctx, id, []domain.OrderLine{
			{Position: 1, Quantity: 2, Item: bottleRef},
			{Position: 2, Quantity: 1, Item: crateRef},
		}); err != nil {
			return err
		}
		if err := repo.DecreaseStock(ctx, domain.KindBottle, fixtureID, 2, true); err != nil {
			return err
		}
		if err := repo.DecreaseStock(ctx, domain.KindCrate, fixtureID, 1, true); err != nil {
			return err
		}

		number, err = domain.GenerateOrderNumber(id, now)
		if err != nil {
			return err
		}
		return repo.UpdateOrderNumber(ctx, id, number)
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}

	order, err := adapter.GetOrderByNumber(ctx, number)
	if err != nil {
		t.Fatalf("GetOrderByNumber failed: %v", err)
	}
	if !order.TotalPrice.Equal(decimal.RequireFromString("13.75")) {
		t.Errorf("expected total 13.75, got %s", order.TotalPrice)
	}

	lines, err := adapter.ListOrderLines(ctx, order.ID)
	if err != nil {
		t.Fatalf("ListOrderLines failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if id, ok := lines[0].Item.BottleID(); !ok || id != fixtureID || lines[0].Position != 1 {
		t.Errorf("line 1 should reference bottle %d: %+v", fixtureID, lines[0])
	}
	if id, ok := lines[1].Item.CrateID(); !ok || id != fixtureID || lines[1].Position != 2 {
		t.Errorf("line 2 should reference crate %d: %+v", fixtureID, lines[1])
	}

	bottle, _ = adapter.GetBeverage(ctx, domain.KindBottle, fixtureID)
	crate, _ = adapter.GetBeverage(ctx, domain.KindCrate, fixtureID)
	if bottle.InStock != 3 || crate.InStock != 1 {
		t.Errorf("expected stock 3/1, got %d/%d", bottle.InStock, crate.InStock)
	}

	orders, err := adapter.ListOrdersByCustomer(ctx, fixtureID, 1, 10)
	if err != nil {
		t.Fatalf("ListOrdersByCustomer failed: %v", err)
	}
	if len(orders) != 1 || orders[0].OrderNumber != number {
		t.Errorf("expected order %s in customer list, got %+v", number, orders)
	}
}

func TestMySQL_RollbackOnError(t *testing.T) {
	db, adapter := setupMySQL(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := adapter.InTx(ctx, func(repo port.CheckoutRepository) error {
		if _, err := repo.InsertOrder(ctx, domain.Order{
			Date:              time.Now(),
			TotalPrice:        decimal.RequireFromString("1.50"),
			CustomerID:        fixtureID,
			DeliveryAddressID: fixtureID,
			BillingAddressID:  fixtureID,
		}); err != nil {
			return err
		}
		if err := repo.DecreaseStock(ctx, domain.KindBottle, fixtureID, 1, true); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = 9001`).Scan(&count)
	if count != 0 {
		t.Errorf("expected no orders after rollback, got %d", count)
	}
	b, _ := adapter.GetBeverage(ctx, domain.KindBottle, fixtureID)
	if b.InStock != 5 {
		t.Errorf("expected stock 5 after rollback, got %d", b.InStock)
	}
}

func TestMySQL_DecreaseStock(t *testing.T) {
	_, adapter := setupMySQL(t)
	ctx := context.Background()

	err := adapter.InTx(ctx, func(repo port.CheckoutRepository) error {
		return repo.DecreaseStock(ctx, domain.KindBottle, fixtureID, 6, true)
	})
	if !errors.Is(err, domain.ErrStockExhausted) {
		t.Errorf("expected ErrStockExhausted, got %v", err)
	}

	err = adapter.InTx(ctx, func(repo port.CheckoutRepository) error {
		return repo.DecreaseStock(ctx, domain.KindBottle, 999999, 1, true)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	err = adapter.InTx(ctx, func(repo port.CheckoutRepository) error {
		return repo.DecreaseStock(ctx, domain.KindBottle, fixtureID, 6, false)
	})
	if err != nil {
		t.Fatalf("unguarded decrease failed: %v", err)
	}
	b, _ := adapter.GetBeverage(ctx, domain.KindBottle, fixtureID)
	if b.InStock != -1 {
		t.Errorf("expected stock -1, got %d", b.InStock)
	}
}

func TestMySQL_IncreaseStock(t *testing.T) {
	_, adapter := setupMySQL(t)
	ctx := context.Background()

	if err := adapter.IncreaseStock(ctx, domain.KindCrate, fixtureID, 4); err != nil {
		t.Fatalf("IncreaseStock failed: %v", err)
	}
	c, _ := adapter.GetBeverage(ctx, domain.KindCrate, fixtureID)
	if c.InStock != 6 {
		t.Errorf("expected stock 6, got %d", c.InStock)
	}

	err := adapter.IncreaseStock(ctx, domain.KindCrate, 999999, 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQL_NotFound(t *testing.T) {
	_, adapter := setupMySQL(t)
	ctx := context.Background()

	if _, err := adapter.GetBeverage(ctx, domain.KindBottle, 999999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for beverage, got %v", err)
	}
	if _, err := adapter.GetOrderByNumber(ctx, "ORD000000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for order, got %v", err)
	}

	err := adapter.InTx(ctx, func(repo port.CheckoutRepository) error {
		_, err := repo.GetAddress(ctx, 999999)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for address, got %v", err)
	}
}

func TestMySQL_CatalogCreateAndUpdate(t *testing.T) {
	db, adapter := setupMySQL(t)
	ctx := context.Background()

	id, err := adapter.CreateBeverage(ctx, domain.Beverage{
		Kind: domain.KindBottle, Name: "IT Bock", PicURL: "https://cdn.example.com/bock.png",
		Price: decimal.RequireFromString("2.40"), InStock: 4,
		Volume: decimal.RequireFromString("0.33"), VolumePercent: decimal.RequireFromString("6.8"), Supplier: "IT Brewery",
	})
	if err != nil {
		t.Fatalf("CreateBeverage failed: %v", err)
	}
	t.Cleanup(func() { db.ExecContext(context.Background(), `DELETE FROM bottles WHERE id = ?`, id) })

	err = adapter.UpdateBeverage(ctx, domain.Beverage{
		ID: id, Kind: domain.KindBottle, Name: "IT Doppelbock", PicURL: "https://cdn.example.com/bock.png",
		Price: decimal.RequireFromString("2.90"), InStock: 100,
		Volume: decimal.RequireFromString("0.33"), VolumePercent: decimal.RequireFromString("7.5"), Supplier: "IT Brewery",
	})
	if err != nil {
		t.Fatalf("UpdateBeverage failed: %v", err)
	}

	got, err := adapter.GetBeverage(ctx, domain.KindBottle, id)
	if err != nil {
		t.Fatalf("GetBeverage failed: %v", err)
	}
	if got.Name != "IT Doppelbock" || !got.Price.Equal(decimal.RequireFromString("2.90")) {
		t.Errorf("update not applied: %+v", got)
	}
	if got.InStock != 4 {
		t.Errorf("expected stock to stay 4, got %d", got.InStock)
	}

	crateID, err := adapter.CreateBeverage(ctx, domain.Beverage{
		Kind: domain.KindCrate, Name: "IT Bock Crate", PicURL: "https://cdn.example.com/bock.jpg",
		Price: decimal.RequireFromString("20"), InStock: 1, NoOfBottles: 24, BottleID: id,
	})
	if err != nil {
		t.Fatalf("CreateBeverage crate failed: %v", err)
	}
	crate, err := adapter.GetBeverage(ctx, domain.KindCrate, crateID)
	if err != nil {
		t.Fatalf("GetBeverage crate failed: %v", err)
	}
	if crate.BottleID != id || crate.NoOfBottles != 24 {
		t.Errorf("unexpected crate: %+v", crate)
	}

	err = adapter.UpdateBeverage(ctx, domain.Beverage{ID: 99999999, Kind: domain.KindCrate, Name: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMySQL_Addresses(t *testing.T) {
	db, adapter := setupMySQL(t)
	ctx := context.Background()
	t.Cleanup(func() {
		db.ExecContext(context.Background(), `DELETE FROM addresses WHERE customer_id = 9001 AND id <> 9001`)
	})

	id, err := adapter.CreateAddress(ctx, domain.Address{
		CustomerID: fixtureID, Name: "office", Street: "Side", HouseNumber: "2", PostalCode: "96050",
	})
	if err != nil {
		t.Fatalf("CreateAddress failed: %v", err)
	}

	err = adapter.UpdateAddress(ctx, domain.Address{ID: id, Name: "office", Street: "Side", HouseNumber: "4", PostalCode: "96050"})
	if err != nil {
		t.Fatalf("UpdateAddress failed: %v", err)
	}

	addresses, err := adapter.ListAddresses(ctx, fixtureID)
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	if len(addresses) != 2 || addresses[0].ID != fixtureID || addresses[1].HouseNumber != "4" {
		t.Errorf("unexpected addresses: %+v", addresses)
	}

	if _, err := adapter.CreateAddress(ctx, domain.Address{CustomerID: 99999999, Name: "x", Street: "y", HouseNumber: "1", PostalCode: "12345"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown customer, got %v", err)
	}
	if err := adapter.UpdateAddress(ctx, domain.Address{ID: 99999999}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown address, got %v", err)
	}
}
