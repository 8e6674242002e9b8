package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/pkg/logging"
	"github.com/rl1809/beverage-store/internal/pkg/metrics"
	"github.com/rl1809/beverage-store/internal/port"
)

const (
	lockRetryInterval = 20 * time.Millisecond
	cartSaveTimeout   = 5 * time.Second
)

type SessionOptions struct {
	// TTL is the session lifetime; a cart expires with it.
	TTL time.Duration
	// LockTTL bounds how long a crashed request can hold a session.
	LockTTL time.Duration
	// LockWait is how long a request waits for a busy session.
	LockWait time.Duration
}

type CartService struct {
	catalog  port.CatalogRepository
	sessions port.SessionRepository
	opts     SessionOptions
	metrics  *metrics.Metrics
}

func NewCartService(catalog port.CatalogRepository, sessions port.SessionRepository, opts SessionOptions, m *metrics.Metrics) *CartService {
	return &CartService{
		catalog:  catalog,
		sessions: sessions,
		opts:     opts,
		metrics:  m,
	}
}

// AddItem puts quantity units of a beverage into the cart. A repeat add
// increases the existing line. The cart is left untouched on error.
func (s *CartService) AddItem(ctx context.Context, cart *domain.Cart, kind domain.BeverageKind, beverageID int64, quantity int) (line domain.CartLine, err error) {
	defer func() { s.observe("add", err) }()

	if quantity <= 0 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}
	if !kind.Valid() {
		return domain.CartLine{}, fmt.Errorf("beverage kind %q: %w", kind, domain.ErrInvalidOperation)
	}

	if _, ok := cart.Line(kind, beverageID); ok {
		return cart.Increase(kind, beverageID, quantity)
	}

	beverage, err := s.catalog.GetBeverage(ctx, kind, beverageID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("get %s %d: %w", kind, beverageID, err)
	}

	return cart.Append(domain.NewCartLine(*beverage, quantity))
}

func (s *CartService) RemoveItem(cart *domain.Cart, lineID int) (err error) {
	defer func() { s.observe("remove", err) }()
	return cart.Remove(lineID)
}

// WithCart runs fn on the session's cart while holding the session lock and
// saves the cart when fn succeeds. A session without a cart starts empty.
func (s *CartService) WithCart(ctx context.Context, sessionID string, fn func(cart *domain.Cart) error) error {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer s.release(ctx, sessionID, unlock)

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := fn(cart); err != nil {
		return err
	}

	if err := s.sessions.SaveCart(ctx, cart, s.opts.TTL); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Checkout runs place on the locked session cart. Once place returns an
// order it is committed, so storing the emptied cart is best effort: a
// failed save is logged and the stored cart is deleted instead, and the
// order is returned either way.
func (s *CartService) Checkout(ctx context.Context, sessionID string, place func(cart *domain.Cart) (*domain.Order, error)) (*domain.Order, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, sessionID, unlock)

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	order, err := place(cart)
	if err != nil {
		return nil, err
	}

	// the request may already be cancelled; the order is not
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartSaveTimeout)
	defer cancel()

	saveErr := s.sessions.SaveCart(saveCtx, cart, s.opts.TTL)
	s.observe("checkout_clear", saveErr)
	if saveErr != nil {
		logger := logging.FromContext(ctx).With(
			zap.String("session_id", sessionID),
			zap.String("order_number", order.OrderNumber))
		logger.Error("checkout_cart_save_failed", zap.Error(saveErr))
		if err := s.sessions.DeleteCart(saveCtx, sessionID); err != nil {
			logger.Error("checkout_cart_delete_failed", zap.Error(err))
		}
	}
	return order, nil
}

// Cart loads the session's cart without locking it.
func (s *CartService) Cart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	return s.load(ctx, sessionID)
}

// DropSession discards the cart when the session ends.
func (s *CartService) DropSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.DeleteCart(ctx, sessionID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (s *CartService) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.sessions.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart == nil {
		cart = domain.NewCart(sessionID)
	}
	return cart, nil
}

func (s *CartService) lock(ctx context.Context, sessionID string) (func(context.Context) error, error) {
	deadline := time.Now().Add(s.opts.LockWait)
	for {
		unlock, ok, err := s.sessions.LockSession(ctx, sessionID, s.opts.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock session: %w", err)
		}
		if ok {
			return unlock, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrSessionBusy)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (s *CartService) release(ctx context.Context, sessionID string, unlock func(context.Context) error) {
	if err := unlock(context.Background()); err != nil {
		logging.FromContext(ctx).Warn("session_unlock_failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *CartService) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.CartOperations.WithLabelValues(op, outcome).Inc()
}
