package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const invoiceDateLayout = "2006-01-02"

type InvoiceAddress struct {
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	PostalCode  string `json:"postalCode"`
}

type InvoiceItem struct {
	Position int             `json:"position"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// MarshalJSON writes price as a JSON number, which is what the invoice
// generator reads.
func (it InvoiceItem) MarshalJSON() ([]byte, error) {
	type plain InvoiceItem
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain: plain(it), Price: json.Number(it.Price.String())})
}

// Invoice is the payload handed to the invoice generator and the archive.
// It is never modified after BuildInvoice returns it.
type Invoice struct {
	OrderNumber     string         `json:"orderNumber"`
	OrderDate       string         `json:"orderDate"`
	CustomerName    string         `json:"customerName"`
	CustomerEmailID string         `json:"customerEmailId"`
	DeliveryAddress InvoiceAddress `json:"deliveryAddress"`
	BillingAddress  InvoiceAddress `json:"billingAddress"`
	Items           []InvoiceItem  `json:"items"`
}

func (i Invoice) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, it := range i.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func BuildInvoice(order Order, customer Customer, delivery, billing Address, lines []OrderLine) (Invoice, error) {
	items := make([]InvoiceItem, 0, len(lines))
	for _, l := range lines {
		if !l.Item.Valid() {
			return Invoice{}, fmt.Errorf("order %s position %d: %w", order.OrderNumber, l.Position, ErrMalformedLine)
		}
		b := l.Item.Beverage()
		items = append(items, InvoiceItem{
			Position: l.Position,
			Name:     b.Name,
			Type:     l.Item.Kind().String(),
			Quantity: l.Quantity,
			Price:    b.Price,
		})
	}

	return Invoice{
		OrderNumber:     order.OrderNumber,
		OrderDate:       order.Date.Format(invoiceDateLayout),
		CustomerName:    customer.FullName(),
		CustomerEmailID: customer.Email,
		DeliveryAddress: invoiceAddress(delivery),
		BillingAddress:  invoiceAddress(billing),
		Items:           items,
	}, nil
}

func invoiceAddress(a Address) InvoiceAddress {
	return InvoiceAddress{Street: a.Street, HouseNumber: a.HouseNumber, PostalCode: a.PostalCode}
}

// OrderPlacedEvent announces a committed order to the mail sender.
type OrderPlacedEvent struct {
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PlacedAt      time.Time       `json:"placed_at"`
}

func NewOrderPlacedEvent(inv Invoice, at time.Time) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderNumber:   inv.OrderNumber,
		CustomerName:  inv.CustomerName,
		CustomerEmail: inv.CustomerEmailID,
		TotalPrice:    inv.TotalPrice(),
		PlacedAt:      at.UTC(),
	}
}
