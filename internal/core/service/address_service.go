package service

import (
	"context"
	"fmt"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/port"
)

type AddressService struct {
	repo port.AddressRepository
}

func NewAddressService(repo port.AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

// Addresses lists the customer's delivery and billing addresses.
func (s *AddressService) Addresses(ctx context.Context, customerID int64) ([]domain.Address, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListAddresses(ctx, customerID)
}

func (s *AddressService) AddAddress(ctx context.Context, customerID int64, a domain.Address) (*domain.Address, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	a = a.Normalize()
	a.CustomerID = customerID
	if err := a.Validate(); err != nil {
		return nil, err
	}

	id, err := s.repo.CreateAddress(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("add address: %w", err)
	}
	a.ID = id
	return &a, nil
}

// UpdateAddress rewrites an address in place. Orders keep pointing at it, so
// the owner never changes.
func (s *AddressService) UpdateAddress(ctx context.Context, addressID int64, a domain.Address) (*domain.Address, error) {
	current, err := s.repo.GetAddress(ctx, addressID)
	if err != nil {
		return nil, err
	}
	a = a.Normalize()
	a.ID = current.ID
	a.CustomerID = current.CustomerID
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAddress(ctx, a); err != nil {
		return nil, fmt.Errorf("update address %d: %w", addressID, err)
	}
	return &a, nil
}
