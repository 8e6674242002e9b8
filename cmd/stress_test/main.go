package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/beverage-store/internal/config"
	"github.com/rl1809/beverage-store/internal/core/domain"
	"github.com/rl1809/beverage-store/internal/core/service"
	"github.com/rl1809/beverage-store/internal/pkg/logging"
)

const (
	initialStock  = 20
	totalSessions = 50
	queueSize     = 100
)

type result struct {
	success    int32
	exhausted  int32
	failed     int32
	finalStock int
	orders     int
	elapsed    time.Duration
}

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		panic(err)
	}
	logger := logging.MustNewLogger("beverage-store-stress", cfg.Env)
	defer logger.Sync()

	ctx := context.Background()
	tgt, err := openTarget(ctx, cfg)
	if err != nil {
		logger.Fatal("stress_target_failed", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer tgt.close()
	logger.Info("stress_target_ready", zap.String("driver", cfg.Store.Driver))

	for _, policy := range []string{config.StockPolicyGuarded, config.StockPolicyUnguarded} {
		res, err := run(ctx, tgt, policy == config.StockPolicyGuarded, logger)
		if err != nil {
			logger.Fatal("stress_run_failed", zap.String("policy", policy), zap.Error(err))
		}
		report(policy, res)
	}
}

// run lets every session put one unit of the same bottle into its cart while
// stock is still available and then check out concurrently.
func run(ctx context.Context, tgt *target, guarded bool, logger *zap.Logger) (result, error) {
	if err := tgt.reset(ctx, initialStock); err != nil {
		return result{}, fmt.Errorf("reset: %w", err)
	}
	for i := 0; i < totalSessions; i++ {
		if err := tgt.sessions.DeleteCart(ctx, sessionID(i)); err != nil {
			return result{}, fmt.Errorf("clear cart %d: %w", i, err)
		}
	}

	dispatcher := service.NewInvoiceDispatcher(service.InvoiceSinks{Archive: tgt.archive}, queueSize, time.Second, zap.NewNop(), nil)
	dispatcher.Start(2)
	defer dispatcher.Close()

	carts := service.NewCartService(tgt.catalog, tgt.sessions, service.SessionOptions{
		TTL: time.Minute, LockTTL: 5 * time.Second, LockWait: 5 * time.Second,
	}, nil)
	orders := service.NewOrderService(tgt.tx, tgt.orders, dispatcher, service.WithGuardedStock(guarded))

	// Every cart sees the full ledger; nothing is reserved until checkout.
	for i := 0; i < totalSessions; i++ {
		err := carts.WithCart(ctx, sessionID(i), func(cart *domain.Cart) error {
			_, err := carts.AddItem(ctx, cart, domain.KindBottle, tgt.bottleID, 1)
			return err
		})
		if err != nil {
			return result{}, fmt.Errorf("fill cart %d: %w", i, err)
		}
	}

	var res result
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalSessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := carts.Checkout(ctx, sessionID(i), func(cart *domain.Cart) (*domain.Order, error) {
				return orders.CreateOrder(ctx, cart, tgt.customerID, tgt.addressID, tgt.addressID)
			})
			switch {
			case err == nil:
				atomic.AddInt32(&res.success, 1)
			case errors.Is(err, domain.ErrStockExhausted):
				atomic.AddInt32(&res.exhausted, 1)
			default:
				atomic.AddInt32(&res.failed, 1)
				logger.Warn("checkout_failed", zap.String("session_id", sessionID(i)), zap.Error(err))
			}
		}(i)
	}

	wg.Wait()
	res.elapsed = time.Since(start)

	bottle, err := tgt.catalog.GetBeverage(ctx, domain.KindBottle, tgt.bottleID)
	if err != nil {
		return result{}, fmt.Errorf("read final stock: %w", err)
	}
	res.finalStock = bottle.InStock
	if res.orders, err = tgt.orderCount(ctx); err != nil {
		return result{}, fmt.Errorf("count orders: %w", err)
	}
	return res, nil
}

func report(policy string, res result) {
	fmt.Printf("========== STOCK RACE (%s) ==========\n", policy)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Sessions:         %d\n", totalSessions)
	fmt.Printf("Orders Placed:    %d\n", res.success)
	fmt.Printf("Sold Out:         %d\n", res.exhausted)
	fmt.Printf("Other Failures:   %d\n", res.failed)
	fmt.Printf("Orders Stored:    %d\n", res.orders)
	fmt.Printf("Final Stock:      %d\n", res.finalStock)
	fmt.Printf("Duration:         %v\n", res.elapsed)
	fmt.Println("==========================================")

	switch policy {
	case config.StockPolicyGuarded:
		if res.success == initialStock && res.finalStock == 0 {
			fmt.Printf("PASS: exactly %d orders succeeded and stock stopped at 0\n", initialStock)
		} else {
			fmt.Printf("FAIL: expected %d orders and stock 0, got %d orders and stock %d\n",
				initialStock, res.success, res.finalStock)
		}
	case config.StockPolicyUnguarded:
		if res.finalStock < 0 {
			fmt.Printf("OVERSOLD: %d units sold beyond the ledger\n", -res.finalStock)
		} else {
			fmt.Println("no oversell observed")
		}
	}
}

func sessionID(i int) string {
	return fmt.Sprintf("stress-session-%d", i)
}
