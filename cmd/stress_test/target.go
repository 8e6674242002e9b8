package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/beverage-store/internal/adapter/storage"
	"github.com/rl1809/beverage-store/internal/config"
	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/port"
)

// MySQL rows owned by the stress run; they are reset before every policy.
const stressFixtureID = 9901

// target is the store the race runs against, chosen by store.driver.
type target struct {
	catalog  port.CatalogRepository
	tx       port.TxRunner
	orders   port.OrderReader
	sessions port.SessionRepository
	archive  port.InvoiceArchive

	bottleID   int64
	customerID int64
	addressID  int64

	reset      func(ctx context.Context, stock int) error
	orderCount func(ctx context.Context) (int, error)
	close      func()
}

func openTarget(ctx context.Context, cfg *config.Config) (*target, error) {
	if cfg.Store.Driver == "memory" {
		return memoryTarget(), nil
	}
	return mysqlTarget(ctx, cfg)
}

func memoryTarget() *target {
	var mem *storage.MemoryAdapter
	t := &target{bottleID: 1, customerID: 1, addressID: 1, close: func() {}}

	t.reset = func(ctx context.Context, stock int) error {
		mem = storage.NewMemoryAdapter()
		if err := mem.PutBeverage(domain.Beverage{
			ID: t.bottleID, Kind: domain.KindBottle, Name: "Last Call Lager",
			Price: decimal.RequireFromString("1.20"), InStock: stock,
			Volume: decimal.RequireFromString("0.5"), VolumePercent: decimal.RequireFromString("5.0"),
		}); err != nil {
			return err
		}
		mem.PutCustomer(domain.Customer{ID: t.customerID, Username: "stress", FirstName: "Stress", LastName: "Test", Email: "stress@example.com"})
		mem.PutAddress(domain.Address{ID: t.addressID, CustomerID: t.customerID, Name: "home", Street: "Main", HouseNumber: "1", PostalCode: "96047"})

		t.catalog, t.tx, t.orders, t.sessions, t.archive = mem, mem, mem, mem, mem
		return nil
	}
	t.orderCount = func(context.Context) (int, error) { return mem.OrderCount(), nil }
	return t
}

func mysqlTarget(ctx context.Context, cfg *config.Config) (*target, error) {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, err
	}
	cache := storage.NewRedisAdapter(rdb, cfg.Invoice.ArchiveTTL)

	return &target{
		catalog:    adapter,
		tx:         adapter,
		orders:     adapter,
		sessions:   cache,
		archive:    cache,
		bottleID:   stressFixtureID,
		customerID: stressFixtureID,
		addressID:  stressFixtureID,
		reset: func(ctx context.Context, stock int) error {
			stmts := []string{
				fmt.Sprintf(`DELETE FROM orders WHERE customer_id = %d`, stressFixtureID),
				fmt.Sprintf(`INSERT INTO bottles (id, name, price, in_stock, volume, volume_percent, supplier)
					VALUES (%d, 'Last Call Lager', 1.20, %d, 0.5, 5.0, 'Stress Brewery')
					ON DUPLICATE KEY UPDATE in_stock = %d, price = 1.20`, stressFixtureID, stock, stock),
				fmt.Sprintf(`INSERT INTO customers (id, username, first_name, last_name, email)
					VALUES (%d, 'stress-%d', 'Stress', 'Test', 'stress@example.com')
					ON DUPLICATE KEY UPDATE email = 'stress@example.com'`, stressFixtureID, stressFixtureID),
				fmt.Sprintf(`INSERT INTO addresses (id, customer_id, name, street, house_number, postal_code)
					VALUES (%d, %d, 'home', 'Main', '1', '96047')
					ON DUPLICATE KEY UPDATE street = 'Main'`, stressFixtureID, stressFixtureID),
			}
			for _, stmt := range stmts {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		orderCount: func(ctx context.Context) (int, error) {
			var n int
			err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = ?`, stressFixtureID).Scan(&n)
			return n, err
		},
		close: func() {
			rdb.Close()
			db.Close()
		},
	}, nil
}
