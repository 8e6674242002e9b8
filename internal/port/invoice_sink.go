package port

import (
	"context"

	"github.com/rl1809/beverage-store/internal/core/domain"
)

// InvoiceGenerator renders the invoice document, typically over HTTP.
type InvoiceGenerator interface {
	GenerateInvoice(ctx context.Context, invoice domain.Invoice) error
}

// InvoiceArchive keeps the invoice payload keyed by order number.
type InvoiceArchive interface {
	StoreInvoice(ctx context.Context, invoice domain.Invoice) error
}

type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event domain.OrderPlacedEvent) error
}
