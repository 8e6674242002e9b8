package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "BEVSTORE"

// Stock policies for the checkout decrement.
const (
	StockPolicyGuarded   = "guarded"
	StockPolicyUnguarded = "unguarded"
)

type Config struct {
	Env string `mapstructure:"env"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	GRPC struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"grpc"`

	Store struct {
		// Driver is "mysql" or "memory"
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`

	MySQL struct {
		DSN             string        `mapstructure:"dsn"`
		MaxOpenConns    int           `mapstructure:"max_open_conns"`
		MaxIdleConns    int           `mapstructure:"max_idle_conns"`
		ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
		Migrate         bool          `mapstructure:"migrate"`
	} `mapstructure:"mysql"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Session struct {
		TTL      time.Duration `mapstructure:"ttl"`
		LockTTL  time.Duration `mapstructure:"lock_ttl"`
		LockWait time.Duration `mapstructure:"lock_wait"`
	} `mapstructure:"session"`

	Checkout struct {
		StockPolicy string `mapstructure:"stock_policy"`
	} `mapstructure:"checkout"`

	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`

	Invoice struct {
		GeneratorURL string        `mapstructure:"generator_url"`
		Timeout      time.Duration `mapstructure:"timeout"`
		Workers      int           `mapstructure:"workers"`
		QueueSize    int           `mapstructure:"queue_size"`
		ArchiveTTL   time.Duration `mapstructure:"archive_ttl"`
	} `mapstructure:"invoice"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "prod")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("store.driver", "mysql")
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/beverage_store?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.lock_ttl", 10*time.Second)
	v.SetDefault("session.lock_wait", 2*time.Second)
	v.SetDefault("checkout.stock_policy", StockPolicyGuarded)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "order.placed")
	v.SetDefault("invoice.generator_url", "")
	v.SetDefault("invoice.timeout", 5*time.Second)
	v.SetDefault("invoice.workers", 4)
	v.SetDefault("invoice.queue_size", 1000)
	v.SetDefault("invoice.archive_ttl", time.Duration(0))
}

// Load reads config.yaml from the given paths (optional) and overlays
// BEVSTORE_* environment variables, e.g. BEVSTORE_MYSQL_DSN.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Checkout.StockPolicy {
	case StockPolicyGuarded, StockPolicyUnguarded:
	default:
		return fmt.Errorf("config: checkout.stock_policy must be %q or %q, got %q",
			StockPolicyGuarded, StockPolicyUnguarded, c.Checkout.StockPolicy)
	}
	switch c.Store.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: store.driver must be mysql or memory, got %q", c.Store.Driver)
	}
	if c.Invoice.Workers <= 0 || c.Invoice.QueueSize <= 0 {
		return errors.New("config: invoice.workers and invoice.queue_size must be positive")
	}
	return nil
}

func (c *Config) GuardedStock() bool {
	return c.Checkout.StockPolicy == StockPolicyGuarded
}
