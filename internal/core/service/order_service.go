package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/pkg/logging"
	"github.com/rl1809/beverage-store/internal/pkg/metrics"
	"github.com/rl1809/beverage-store/internal/port"
)

const tracerName = "github.com/rl1809/beverage-store/internal/core/service"

// InvoiceQueue accepts invoices for asynchronous delivery. Enqueue must not
// block; it reports false when the invoice was dropped.
type InvoiceQueue interface {
	Enqueue(invoice domain.Invoice) bool
}

type OrderService struct {
	tx       port.TxRunner
	orders   port.OrderReader
	invoices InvoiceQueue
	guarded  bool
	now      func() time.Time
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type OrderOption func(*OrderService)

// WithGuardedStock makes checkout refuse to take stock below zero. Without it
// the decrement is unconditional and concurrent checkouts may oversell.
func WithGuardedStock(guarded bool) OrderOption {
	return func(s *OrderService) { s.guarded = guarded }
}

func WithClock(now func() time.Time) OrderOption {
	return func(s *OrderService) { s.now = now }
}

func WithOrderMetrics(m *metrics.Metrics) OrderOption {
	return func(s *OrderService) { s.metrics = m }
}

func NewOrderService(tx port.TxRunner, orders port.OrderReader, invoices InvoiceQueue, opts ...OrderOption) *OrderService {
	s := &OrderService{
		tx:       tx,
		orders:   orders,
		invoices: invoices,
		guarded:  true,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder converts the cart into a persisted order. Customer and address
// lookups, the order row, its lines, the stock decrements and the order
// number are written in one transaction. The cart is cleared and the invoice
// queued only after that transaction commits.
func (s *OrderService) CreateOrder(ctx context.Context, cart *domain.Cart, customerID, deliveryAddressID, billingAddressID int64) (_ *domain.Order, err error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.Int64("order.customer_id", customerID),
		attribute.Int64("order.delivery_address_id", deliveryAddressID),
		attribute.Int64("order.billing_address_id", billingAddressID),
	))
	start := time.Now()
	logger := logging.FromContext(ctx).With(zap.String("component", "order_service"), zap.Int64("customer_id", customerID))

	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		if s.metrics != nil {
			s.metrics.Checkouts.WithLabelValues(outcome).Inc()
			s.metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if cart == nil || cart.IsEmpty() {
		return nil, fmt.Errorf("cart is empty: %w", domain.ErrInvalidOperation)
	}
	logger.Info("create_order_start", zap.Int("lines", len(cart.Lines)), zap.Int("items", cart.ItemCount()))

	var (
		order    domain.Order
		customer *domain.Customer
		delivery *domain.Address
		billing  *domain.Address
	)

	err = s.tx.InTx(ctx, func(repo port.CheckoutRepository) error {
		var err error
		if customer, err = repo.GetCustomer(ctx, customerID); err != nil {
			return fmt.Errorf("resolve customer %d: %w", customerID, err)
		}
		if delivery, err = repo.GetAddress(ctx, deliveryAddressID); err != nil {
			return fmt.Errorf("resolve delivery address %d: %w", deliveryAddressID, err)
		}
		if billing, err = repo.GetAddress(ctx, billingAddressID); err != nil {
			return fmt.Errorf("resolve billing address %d: %w", billingAddressID, err)
		}

		now := s.now()
		order = domain.Order{
			Date:              now,
			TotalPrice:        cart.Total(),
			CustomerID:        customer.ID,
			DeliveryAddressID: delivery.ID,
			BillingAddressID:  billing.ID,
		}
		if order.ID, err = repo.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		items := cart.Items()
		lines := make([]domain.OrderLine, 0, len(items))
		for i, item := range items {
			beverage, err := repo.GetBeverage(ctx, item.Kind, item.BeverageID)
			if err != nil {
				return fmt.Errorf("resolve %s %d: %w", item.Kind, item.BeverageID, err)
			}
			ref, err := domain.RefTo(*beverage)
			if err != nil {
				return err
			}
			lines = append(lines, domain.OrderLine{Position: i + 1, Quantity: item.Quantity, Item: ref})
		}

		for _, item := range items {
			if err := repo.DecreaseStock(ctx, item.Kind, item.BeverageID, item.Quantity, s.guarded); err != nil {
				return fmt.Errorf("decrease stock %s %d by %d: %w", item.Kind, item.BeverageID, item.Quantity, err)
			}
		}

		if err := repo.InsertOrderLines(ctx, order.ID, lines); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}

		number, err := domain.GenerateOrderNumber(order.ID, now)
		if err != nil {
			return err
		}
		if err := repo.UpdateOrderNumber(ctx, order.ID, number); err != nil {
			return fmt.Errorf("assign order number: %w", err)
		}
		order.OrderNumber = number
		order.Lines = lines
		return nil
	})
	if err != nil {
		logger.Warn("create_order_failed", zap.Error(err))
		return nil, err
	}

	cart.Clear()
	span.SetAttributes(attribute.String("order.number", order.OrderNumber))
	logger.Info("create_order_success",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_price", order.TotalPrice.StringFixed(2)),
	)

	s.queueInvoice(logger, order, *customer, *delivery, *billing)
	return &order, nil
}

// queueInvoice runs after commit; nothing here may fail the checkout.
func (s *OrderService) queueInvoice(logger *zap.Logger, order domain.Order, customer domain.Customer, delivery, billing domain.Address) {
	invoice, err := domain.BuildInvoice(order, customer, delivery, billing, order.Lines)
	if err != nil {
		logger.Error("invoice_build_failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		return
	}
	if s.invoices == nil {
		return
	}
	if !s.invoices.Enqueue(invoice) {
		logger.Warn("invoice_dropped", zap.String("order_number", order.OrderNumber))
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*domain.Order, error) {
	order, err := s.orders.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", orderNumber, err)
	}
	lines, err := s.orders.ListOrderLines(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("order %s lines: %w", orderNumber, err)
	}
	order.Lines = lines
	return order, nil
}

// ResendInvoice rebuilds the invoice of a committed order and queues it
// again. It reports whether the invoice was accepted by the queue.
func (s *OrderService) ResendInvoice(ctx context.Context, orderNumber string) (domain.Invoice, bool, error) {
	order, err := s.GetOrder(ctx, orderNumber)
	if err != nil {
		return domain.Invoice{}, false, err
	}

	var (
		customer *domain.Customer
		delivery *domain.Address
		billing  *domain.Address
	)
	err = s.tx.InTx(ctx, func(repo port.CheckoutRepository) error {
		var err error
		if customer, err = repo.GetCustomer(ctx, order.CustomerID); err != nil {
			return err
		}
		if delivery, err = repo.GetAddress(ctx, order.DeliveryAddressID); err != nil {
			return err
		}
		billing, err = repo.GetAddress(ctx, order.BillingAddressID)
		return err
	})
	if err != nil {
		return domain.Invoice{}, false, fmt.Errorf("order %s parties: %w", orderNumber, err)
	}

	invoice, err := domain.BuildInvoice(*order, *customer, *delivery, *billing, order.Lines)
	if err != nil {
		return domain.Invoice{}, false, err
	}
	queued := s.invoices != nil && s.invoices.Enqueue(invoice)
	logging.FromContext(ctx).Info("invoice_resend",
		zap.String("order_number", orderNumber), zap.Bool("queued", queued))
	return invoice, queued, nil
}

func (s *OrderService) ListOrders(ctx context.Context, customerID int64, page, size int) ([]domain.Order, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("page %d size %d: %w", page, size, domain.ErrInvalidOperation)
	}
	return s.orders.ListOrdersByCustomer(ctx, customerID, page, size)
}

// IsClientError reports whether err is one of the rejections a caller can act
// on, as opposed to a storage failure.
func IsClientError(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrInsufficientStock,
		domain.ErrInvalidOperation,
		domain.ErrInvalidQuantity,
		domain.ErrStockExhausted,
		domain.ErrSessionBusy,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
