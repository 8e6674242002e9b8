package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/beverage-store/internal/adapter/handler"
	"github.com/rl1809/beverage-store/internal/adapter/invoice"
	"github.com/rl1809/beverage-store/internal/adapter/messaging"
	"github.com/rl1809/beverage-store/internal/adapter/storage"
	"github.com/rl1809/beverage-store/internal/config"
	"github.com/rl1809/beverage-store/internal/core/service"
	"github.com/rl1809/beverage-store/internal/pkg/logging"
	"github.com/rl1809/beverage-store/internal/pkg/metrics"
	"github.com/rl1809/beverage-store/internal/port"
)

const serviceName = "beverage-store"

// stores groups the adapters selected by store.driver.
type stores struct {
	catalog   port.CatalogRepository
	addresses port.AddressRepository
	tx        port.TxRunner
	orders    port.OrderReader
	sessions  port.SessionRepository
	archive   port.InvoiceArchive
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.MustNewLogger(serviceName, cfg.Env)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_init_failed", zap.Error(err))
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sinks := service.InvoiceSinks{Archive: st.archive}
	if cfg.Invoice.GeneratorURL != "" {
		sinks.Generator = invoice.NewHTTPGenerator(cfg.Invoice.GeneratorURL, &http.Client{Timeout: cfg.Invoice.Timeout})
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := messaging.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sinks.Publisher = publisher
	}

	dispatcher := service.NewInvoiceDispatcher(sinks, cfg.Invoice.QueueSize, cfg.Invoice.Timeout, logger, m)
	dispatcher.Start(cfg.Invoice.Workers)

	carts := service.NewCartService(st.catalog, st.sessions, service.SessionOptions{
		TTL:      cfg.Session.TTL,
		LockTTL:  cfg.Session.LockTTL,
		LockWait: cfg.Session.LockWait,
	}, m)
	catalog := service.NewCatalogService(st.catalog)
	addresses := service.NewAddressService(st.addresses)
	orders := service.NewOrderService(st.tx, st.orders, dispatcher,
		service.WithGuardedStock(cfg.GuardedStock()),
		service.WithOrderMetrics(m),
	)

	// gRPC
	grpcServer := grpc.NewServer()
	handler.RegisterCheckoutServer(grpcServer, handler.NewGRPCHandler(carts, orders, logger))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.CheckoutServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Fatal("grpc_listen_failed", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
	}
	go func() {
		logger.Info("grpc_server_listening", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc_server_error", zap.Error(err))
		}
	}()

	// HTTP
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	handler.NewHTTPHandler(carts, catalog, orders, addresses, logger).Register(router)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http_server_listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", zap.Error(err))
	}
	logger.Info("http_server_stopped")

	healthServer.Shutdown()
	grpcServer.GracefulStop()
	logger.Info("grpc_server_stopped")

	dispatcher.Close()
	logger.Info("invoice_workers_stopped")
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		mem := storage.NewMemoryAdapter()
		if err := seedDemo(mem); err != nil {
			return nil, err
		}
		logger.Warn("using_memory_store", zap.Int64("demo_customer_id", demoCustomerID))
		return &stores{
			catalog: mem, addresses: mem, tx: mem, orders: mem, sessions: mem, archive: mem,
			close: func() {},
		}, nil
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected_to_mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if cfg.MySQL.Migrate {
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("schema_migrated")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("connected_to_redis")

	redisAdapter := storage.NewRedisAdapter(rdb, cfg.Invoice.ArchiveTTL)
	return &stores{
		catalog:   mysqlAdapter,
		addresses: mysqlAdapter,
		tx:        mysqlAdapter,
		orders:    mysqlAdapter,
		sessions:  redisAdapter,
		archive:   redisAdapter,
		close: func() {
			rdb.Close()
			db.Close()
		},
	}, nil
}
