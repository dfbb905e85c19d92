package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends for persisted carts.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix) or YAML config files.
type Config struct {
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)"`
	Storage     StorageConfig
	Pricing     PricingConfig
}

// StorageConfig selects where cart wrappers are persisted. The catalog is
// always read from PostgreSQL.
type StorageConfig struct {
	Backend string `default:"postgres" usage:"Cart storage backend: postgres, redis or sqlite"`
	Redis   RedisConfig
	SQLite  SQLiteConfig
}

// RedisConfig configures the Redis cart store.
type RedisConfig struct {
	Addr   string        `default:"localhost:6379" usage:"Redis address"`
	Prefix string        `default:"kart" usage:"Key prefix"`
	TTL    time.Duration `default:"0" usage:"Cart expiry, 0 keeps carts until overwritten"`
}

// SQLiteConfig configures the SQLite cart store.
type SQLiteConfig struct {
	Path string `default:"kart.db" usage:"Database file path"`
}

// PricingConfig configures the pricing engine.
type PricingConfig struct {
	Currency            string   `default:"EUR" usage:"Currency of computed carts"`
	TaxInclusive        bool     `default:"false" usage:"Catalog prices include tax"`
	BasePriceIdentifier string   `default:"" usage:"Price identifier of the pre-discount price; empty disables discounts"`
	ProductAttributes   []string `usage:"Product attributes copied to line items"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: true,
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the conventional DATABASE_URL variable to the
// KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	}
	switch c.Storage.Backend {
	case BackendPostgres, BackendRedis, BackendSQLite:
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Pricing.Currency == "" {
		return errors.New("pricing currency is required")
	}
	return nil
}
