package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://kart@localhost/kart")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://kart@localhost/kart", cfg.DatabaseURL)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "EUR", cfg.Pricing.Currency)
	assert.False(t, cfg.Pricing.TaxInclusive)
	assert.Equal(t, "kart", cfg.Storage.Redis.Prefix)
	assert.Zero(t, cfg.Storage.Redis.TTL)
}

func TestLoadConfig_RedisTTL(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://kart@localhost/kart")
	t.Setenv("KART_STORAGE_REDIS_TTL", "48h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Storage.Redis.TTL)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "postgres://kart@localhost/kart")
	t.Setenv("KART_STORAGE_BACKEND", "redis")
	t.Setenv("KART_PRICING_CURRENCY", "SEK")
	t.Setenv("KART_PRICING_BASE_PRICE_IDENTIFIER", "msrp")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "SEK", cfg.Pricing.Currency)
	assert.Equal(t, "msrp", cfg.Pricing.BasePriceIdentifier)
}

func TestLoadConfig_PlatformDatabaseURL(t *testing.T) {
	t.Setenv("KART_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://x",
			Storage:     StorageConfig{Backend: BackendSQLite},
			Pricing:     PricingConfig{Currency: "EUR"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no database", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "database URL is required"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "etcd" }, wantErr: `unknown storage backend "etcd"`},
		{name: "no currency", mutate: func(c *Config) { c.Pricing.Currency = "" }, wantErr: "currency is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
