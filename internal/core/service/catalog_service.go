package service

import (
	"context"
	"fmt"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/port"
)

type CatalogService struct {
	catalog port.CatalogRepository
}

func NewCatalogService(catalog port.CatalogRepository) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// AllowedStock subtracts what the cart already holds from each entry's raw
// stock. The result is advisory: it reserves nothing, and two sessions can
// both see the last unit as available.
func AllowedStock(entries []domain.Beverage, cart *domain.Cart) []domain.Listing {
	out := make([]domain.Listing, 0, len(entries))
	for _, b := range entries {
		allowed := b.InStock
		if cart != nil {
			allowed -= cart.QuantityOf(b.Kind, b.ID)
		}
		out = append(out, domain.Listing{Beverage: b, AllowedInStock: allowed})
	}
	return out
}

func (s *CatalogService) ListWithAllowedStock(ctx context.Context, kind domain.BeverageKind, page, size int, cart *domain.Cart) ([]domain.Listing, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("page %d size %d: %w", page, size, domain.ErrInvalidOperation)
	}
	entries, err := s.catalog.ListBeverages(ctx, kind, page, size)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return AllowedStock(entries, cart), nil
}

func (s *CatalogService) Beverage(ctx context.Context, kind domain.BeverageKind, id int64) (*domain.Beverage, error) {
	return s.catalog.GetBeverage(ctx, kind, id)
}

// Restock adds units to the ledger with a single atomic increment.
func (s *CatalogService) Restock(ctx context.Context, kind domain.BeverageKind, id int64, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if err := s.catalog.IncreaseStock(ctx, kind, id, quantity); err != nil {
		return fmt.Errorf("restock %s %d: %w", kind, id, err)
	}
	return nil
}

// AddBeverage validates b and adds it to the catalog. A crate must refer to
// an existing bottle.
func (s *CatalogService) AddBeverage(ctx context.Context, b domain.Beverage) (*domain.Beverage, error) {
	if err := s.check(ctx, b); err != nil {
		return nil, err
	}
	id, err := s.catalog.CreateBeverage(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", b.Kind, err)
	}
	b.ID = id
	return &b, nil
}

// UpdateBeverage replaces the descriptive fields of an existing entry. The
// stock count is kept; use Restock to change it.
func (s *CatalogService) UpdateBeverage(ctx context.Context, b domain.Beverage) (*domain.Beverage, error) {
	current, err := s.catalog.GetBeverage(ctx, b.Kind, b.ID)
	if err != nil {
		return nil, fmt.Errorf("update %s %d: %w", b.Kind, b.ID, err)
	}
	b.InStock = current.InStock

	if err := s.check(ctx, b); err != nil {
		return nil, err
	}
	if err := s.catalog.UpdateBeverage(ctx, b); err != nil {
		return nil, fmt.Errorf("update %s %d: %w", b.Kind, b.ID, err)
	}
	return &b, nil
}

func (s *CatalogService) check(ctx context.Context, b domain.Beverage) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Kind == domain.KindCrate {
		if _, err := s.catalog.GetBeverage(ctx, domain.KindBottle, b.BottleID); err != nil {
			return fmt.Errorf("crate bottle %d: %w", b.BottleID, err)
		}
	}
	return nil
}
