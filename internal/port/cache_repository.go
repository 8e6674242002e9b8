package port

import (
	"context"
	"time"

	"github.com/rl1809/beverage-store/internal/core/domain"
)

type SessionRepository interface {
	// LoadCart returns nil, nil when the session has no cart yet
	LoadCart(ctx context.Context, sessionID string) (*domain.Cart, error)

	// SaveCart stores the cart for ttl; the cart expires with the session
	SaveCart(ctx context.Context, cart *domain.Cart, ttl time.Duration) error

	DeleteCart(ctx context.Context, sessionID string) error

	// LockSession serializes requests of one session. It returns false when
	// another request holds the lock.
	LockSession(ctx context.Context, sessionID string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}
