package handler

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"

	"github.com/rl1809/beverage-store/internal/core/domain"
)

type BeverageView struct {
	ID             int64            `json:"id"`
	Kind           string           `json:"kind"`
	Name           string           `json:"name"`
	PicURL         string           `json:"pic_url,omitempty"`
	Price          decimal.Decimal  `json:"price"`
	InStock        int              `json:"in_stock"`
	AllowedInStock *int             `json:"allowed_in_stock,omitempty"`
	Volume         *decimal.Decimal `json:"volume,omitempty"`
	VolumePercent  *decimal.Decimal `json:"volume_percent,omitempty"`
	Supplier       string           `json:"supplier,omitempty"`
	NoOfBottles    int              `json:"no_of_bottles,omitempty"`
	BottleID       int64            `json:"bottle_id,omitempty"`
}

type CartView struct {
	SessionID string            `json:"session_id"`
	Lines     []domain.CartLine `json:"lines"`
	ItemCount int               `json:"item_count"`
	Total     decimal.Decimal   `json:"total"`
}

type OrderLineView struct {
	Position   int             `json:"position"`
	Quantity   int             `json:"quantity"`
	Kind       string          `json:"kind"`
	BeverageID int64           `json:"beverage_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Total      decimal.Decimal `json:"total"`
}

type OrderView struct {
	OrderNumber       string          `json:"order_number"`
	Date              string          `json:"date"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	CustomerID        int64           `json:"customer_id"`
	DeliveryAddressID int64           `json:"delivery_address_id"`
	BillingAddressID  int64           `json:"billing_address_id"`
	Lines             []OrderLineView `json:"lines,omitempty"`
}

type AddressView struct {
	ID          int64  `json:"id"`
	CustomerID  int64  `json:"customer_id"`
	Name        string `json:"name"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
}

func addressView(a domain.Address) AddressView {
	return AddressView{
		ID:          a.ID,
		CustomerID:  a.CustomerID,
		Name:        a.Name,
		Street:      a.Street,
		HouseNumber: a.HouseNumber,
		PostalCode:  a.PostalCode,
	}
}

func addressViews(addresses []domain.Address) []AddressView {
	out := make([]AddressView, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, addressView(a))
	}
	return out
}

func beverageView(b domain.Beverage) BeverageView {
	v := BeverageView{
		ID:      b.ID,
		Kind:    b.Kind.String(),
		Name:    b.Name,
		PicURL:  b.PicURL,
		Price:   b.Price,
		InStock: b.InStock,
	}
	switch b.Kind {
	case domain.KindBottle:
		volume, percent := b.Volume, b.VolumePercent
		v.Volume = &volume
		v.VolumePercent = &percent
		v.Supplier = b.Supplier
	case domain.KindCrate:
		v.NoOfBottles = b.NoOfBottles
		v.BottleID = b.BottleID
	}
	return v
}

func listingViews(listings []domain.Listing) []BeverageView {
	out := make([]BeverageView, 0, len(listings))
	for _, l := range listings {
		v := beverageView(l.Beverage)
		allowed := l.AllowedInStock
		v.AllowedInStock = &allowed
		out = append(out, v)
	}
	return out
}

func cartView(cart *domain.Cart) CartView {
	return CartView{
		SessionID: cart.SessionID,
		Lines:     cart.Items(),
		ItemCount: cart.ItemCount(),
		Total:     cart.Total(),
	}
}

func orderView(o *domain.Order) OrderView {
	v := OrderView{
		OrderNumber:       o.OrderNumber,
		Date:              o.Date.Format("2006-01-02"),
		TotalPrice:        o.TotalPrice,
		CustomerID:        o.CustomerID,
		DeliveryAddressID: o.DeliveryAddressID,
		BillingAddressID:  o.BillingAddressID,
	}
	for _, l := range o.Lines {
		b := l.Item.Beverage()
		v.Lines = append(v.Lines, OrderLineView{
			Position:   l.Position,
			Quantity:   l.Quantity,
			Kind:       l.Item.Kind().String(),
			BeverageID: b.ID,
			Name:       b.Name,
			UnitPrice:  b.Price,
			Total:      l.Total(),
		})
	}
	return v
}

// errorStatus maps a service error to the HTTP status, the gRPC code and the
// message shown to the caller. Unknown errors are reported as internal.
func errorStatus(err error) (int, codes.Code, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codes.NotFound, "not found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, codes.FailedPrecondition, "insufficient stock"
	case errors.Is(err, domain.ErrStockExhausted):
		return http.StatusConflict, codes.FailedPrecondition, "sold out"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, codes.InvalidArgument, "invalid quantity"
	case errors.Is(err, domain.ErrInvalidOperation):
		return http.StatusBadRequest, codes.InvalidArgument, "invalid operation"
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusTooManyRequests, codes.Unavailable, "session busy"
	}
	return http.StatusInternalServerError, codes.Internal, "internal error"
}
