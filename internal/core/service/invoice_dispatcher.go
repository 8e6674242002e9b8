package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/pkg/metrics"
	"github.com/rl1809/beverage-store/internal/port"
)

// Sink names used in logs and metrics.
const (
	SinkArchive   = "archive"
	SinkGenerator = "generator"
	SinkPublisher = "publisher"
)

// InvoiceSinks lists the downstream collaborators. Nil sinks are skipped.
type InvoiceSinks struct {
	Archive   port.InvoiceArchive
	Generator port.InvoiceGenerator
	Publisher port.OrderEventPublisher
}

// InvoiceDispatcher delivers invoices of committed orders on a pool of
// workers. Delivery is best effort: failures are logged and counted, never
// retried.
type InvoiceDispatcher struct {
	queue   chan domain.Invoice
	sinks   InvoiceSinks
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewInvoiceDispatcher(sinks InvoiceSinks, queueSize int, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *InvoiceDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceDispatcher{
		queue:   make(chan domain.Invoice, queueSize),
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "invoice_dispatcher")),
		metrics: m,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

// Enqueue never blocks. It returns false when the queue is full or closed.
func (d *InvoiceDispatcher) Enqueue(invoice domain.Invoice) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.count("queue", metrics.OutcomeDropped)
		return false
	}
	select {
	case d.queue <- invoice:
		d.gauge()
		return true
	default:
		d.count("queue", metrics.OutcomeDropped)
		return false
	}
}

// Start launches the workers. Call Close to drain and stop them.
func (d *InvoiceDispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.logger.Info("invoice_workers_started", zap.Int("workers", workers))
}

// Close stops accepting invoices and waits until the queue is drained.
func (d *InvoiceDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *InvoiceDispatcher) workerLoop(id int) {
	for invoice := range d.queue {
		d.gauge()
		d.dispatch(id, invoice)
	}
}

func (d *InvoiceDispatcher) dispatch(worker int, invoice domain.Invoice) {
	ctx, span := d.tracer.Start(context.Background(), "InvoiceDispatcher.dispatch",
		trace.WithAttributes(attribute.String("order.number", invoice.OrderNumber)))
	defer span.End()

	logger := d.logger.With(zap.Int("worker", worker), zap.String("order_number", invoice.OrderNumber))

	if d.sinks.Archive != nil {
		d.run(ctx, span, logger, SinkArchive, func(ctx context.Context) error {
			return d.sinks.Archive.StoreInvoice(ctx, invoice)
		})
	}
	if d.sinks.Generator != nil {
		d.run(ctx, span, logger, SinkGenerator, func(ctx context.Context) error {
			return d.sinks.Generator.GenerateInvoice(ctx, invoice)
		})
	}
	if d.sinks.Publisher != nil {
		event := domain.NewOrderPlacedEvent(invoice, d.now())
		d.run(ctx, span, logger, SinkPublisher, func(ctx context.Context) error {
			return d.sinks.Publisher.PublishOrderPlaced(ctx, event)
		})
	}
}

func (d *InvoiceDispatcher) run(ctx context.Context, span trace.Span, logger *zap.Logger, sink string, call func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := call(ctx); err != nil {
		span.RecordError(err, trace.WithAttributes(attribute.String("sink", sink)))
		span.SetStatus(codes.Error, sink+" failed")
		logger.Error("invoice_dispatch_failed", zap.String("sink", sink), zap.Error(err))
		d.count(sink, metrics.OutcomeFailure)
		return
	}
	logger.Info("invoice_dispatched", zap.String("sink", sink))
	d.count(sink, metrics.OutcomeSuccess)
}

func (d *InvoiceDispatcher) count(sink, outcome string) {
	if d.metrics != nil {
		d.metrics.Dispatches.WithLabelValues(sink, outcome).Inc()
	}
}

func (d *InvoiceDispatcher) gauge() {
	if d.metrics != nil {
		d.metrics.DispatchQueue.Set(float64(len(d.queue)))
	}
}
