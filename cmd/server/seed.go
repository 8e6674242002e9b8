package main

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/beverage-store/internal/adapter/storage"
	"github.com/rl1809/beverage-store/internal/core/domain"
)

const demoCustomerID = 1

// seedDemo gives the memory store a customer with an address and a small
// catalog so that a fresh process can take orders. Customers are managed
// outside this service.
func seedDemo(mem *storage.MemoryAdapter) error {
	beverages := []domain.Beverage{
		{
			ID: 1, Kind: domain.KindBottle, Name: "Pils", PicURL: "https://cdn.example.com/pils.png",
			Price: decimal.RequireFromString("1.20"), InStock: 100,
			Volume: decimal.RequireFromString("0.5"), VolumePercent: decimal.RequireFromString("4.9"), Supplier: "Demo Brewery",
		},
		{
			ID: 2, Kind: domain.KindBottle, Name: "Apple Spritzer", PicURL: "https://cdn.example.com/spritzer.png",
			Price: decimal.RequireFromString("0.90"), InStock: 60,
			Volume: decimal.RequireFromString("0.75"), VolumePercent: decimal.Zero, Supplier: "Demo Orchard",
		},
		{
			ID: 1, Kind: domain.KindCrate, Name: "Pils Crate", PicURL: "https://cdn.example.com/pils-crate.jpg",
			Price: decimal.RequireFromString("18.50"), InStock: 10, NoOfBottles: 20, BottleID: 1,
		},
	}
	for _, b := range beverages {
		if err := mem.PutBeverage(b); err != nil {
			return err
		}
	}

	mem.PutCustomer(domain.Customer{
		ID: demoCustomerID, Username: "demo", FirstName: "Demo", LastName: "Customer", Email: "demo@example.com",
	})
	mem.PutAddress(domain.Address{
		ID: 1, CustomerID: demoCustomerID, Name: "home", Street: "Main Street", HouseNumber: "1", PostalCode: "96047",
	})
	return nil
}
