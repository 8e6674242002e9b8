package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/beverage-store/internal/core/domain"
)

const (
	cartKeyPrefix    = "session:cart:"
	lockKeyPrefix    = "session:lock:"
	invoiceKeyPrefix = "invoice:"
)

// releaseLockScript deletes the lock only if it still belongs to the caller.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisAdapter struct {
	client     *redis.Client
	archiveTTL time.Duration
}

// NewRedisAdapter stores session carts and archived invoices. archiveTTL of
// zero keeps invoices forever.
func NewRedisAdapter(client *redis.Client, archiveTTL time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, archiveTTL: archiveTTL}
}

func (r *RedisAdapter) LoadCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	payload, err := r.client.Get(ctx, cartKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := json.Unmarshal(payload, &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, nil
}

func (r *RedisAdapter) SaveCart(ctx context.Context, cart *domain.Cart, ttl time.Duration) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.client.Set(ctx, cartKeyPrefix+cart.SessionID, payload, ttl).Err()
}

func (r *RedisAdapter) DeleteCart(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, cartKeyPrefix+sessionID).Err()
}

func (r *RedisAdapter) LockSession(ctx context.Context, sessionID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := lockKeyPrefix + sessionID
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		return releaseLockScript.Run(ctx, r.client, []string{key}, token).Err()
	}, true, nil
}

// StoreInvoice archives the invoice payload under invoice:<order number>
// together with the time it was stored.
func (r *RedisAdapter) StoreInvoice(ctx context.Context, invoice domain.Invoice) error {
	payload, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}

	key := invoiceKeyPrefix + invoice.OrderNumber
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key,
		"order_number", invoice.OrderNumber,
		"customer_name", invoice.CustomerName,
		"customer_email_id", invoice.CustomerEmailID,
		"payload", payload,
		"timestamp", time.Now().UTC().Format(time.RFC3339Nano),
	)
	if r.archiveTTL > 0 {
		pipe.Expire(ctx, key, r.archiveTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ArchivedInvoice reads an invoice back from the archive.
func (r *RedisAdapter) ArchivedInvoice(ctx context.Context, orderNumber string) (*domain.Invoice, error) {
	payload, err := r.client.HGet(ctx, invoiceKeyPrefix+orderNumber, "payload").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("invoice %s: %w", orderNumber, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var inv domain.Invoice
	if err := json.Unmarshal(payload, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &inv, nil
}
