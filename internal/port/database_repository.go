package port

import (
	"context"

	"github.com/rl1809/beverage-store/internal/core/domain"
)

type CatalogRepository interface {
	// GetBeverage returns domain.ErrNotFound for an unknown id
	GetBeverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error)

	// ListBeverages pages the catalog ordered by name, page starts at 1
	ListBeverages(ctx context.Context, kind domain.BeverageKind, page, size int) ([]domain.Beverage, error)

	// IncreaseStock atomically adds quantity to the ledger (restocking)
	IncreaseStock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int) error

	// CreateBeverage inserts a catalog entry and returns its generated id
	CreateBeverage(ctx context.Context, b domain.Beverage) (int64, error)

	// UpdateBeverage rewrites the descriptive fields of b.ID. The stock
	// count is left alone; it only moves through IncreaseStock and checkout.
	UpdateBeverage(ctx context.Context, b domain.Beverage) error
}

// AddressRepository manages the addresses customers pick at checkout.
type AddressRepository interface {
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
	GetAddress(ctx context.Context, addressID int64) (*domain.Address, error)

	// ListAddresses returns the customer's addresses ordered by id
	ListAddresses(ctx context.Context, customerID int64) ([]domain.Address, error)

	CreateAddress(ctx context.Context, a domain.Address) (int64, error)

	// UpdateAddress rewrites name, street, house number and postal code
	UpdateAddress(ctx context.Context, a domain.Address) error
}

// CheckoutRepository is bound to a single transaction by TxRunner.
type CheckoutRepository interface {
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
	GetAddress(ctx context.Context, addressID int64) (*domain.Address, error)
	GetBeverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error)

	// InsertOrder stores the order without a number and returns the generated id
	InsertOrder(ctx context.Context, order domain.Order) (int64, error)

	UpdateOrderNumber(ctx context.Context, orderID int64, number string) error

	InsertOrderLines(ctx context.Context, orderID int64, lines []domain.OrderLine) error

	// DecreaseStock is a single atomic statement. When guarded it refuses to
	// go below zero and returns domain.ErrStockExhausted.
	DecreaseStock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int, guarded bool) error
}

type TxRunner interface {
	// InTx commits when fn returns nil and rolls back every write otherwise
	InTx(ctx context.Context, fn func(repo CheckoutRepository) error) error
}

type OrderReader interface {
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID int64, page, size int) ([]domain.Order, error)
	ListOrderLines(ctx context.Context, orderID int64) ([]domain.OrderLine, error)
}
