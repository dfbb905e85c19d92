package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-engine/internal/domain/cart"
	"github.com/xenking/kart-engine/internal/domain/catalog"
	"github.com/xenking/kart-engine/internal/domain/lifecycle"
	"github.com/xenking/kart-engine/internal/storage/postgres"
	redisstore "github.com/xenking/kart-engine/internal/storage/redis"
	"github.com/xenking/kart-engine/internal/storage/sqlite"
	"github.com/xenking/kart-engine/pkg/health"
)

// Services are the wired domain components.
type Services struct {
	Engine     *cart.Engine
	Repository *lifecycle.Repository
	Health     *health.Health

	closers []func()
}

// Close releases every connection opened by Build, in reverse order.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build creates all dependencies. It is the single wiring point for the
// application.
func Build(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) (_ *Services, rerr error) {
	s := &Services{Health: health.New(time.Second)}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	lg.Debug("Initializing",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("currency", cfg.Pricing.Currency),
	)

	// PostgreSQL pool + migrations. The catalog always lives here.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, "kartctl")
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	s.closers = append(s.closers, pool.Close)

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	s.Health.AddCheck("postgres", 5*time.Second, 3, pool.Ping)

	storage, err := s.openStorage(ctx, cfg, func() lifecycle.Storage {
		return postgres.NewCartStore(pool)
	})
	if err != nil {
		return nil, errors.Wrap(err, "open cart storage")
	}

	s.Engine, err = cart.NewEngine(engineConfig(cfg.Pricing, postgres.NewCatalogRepository(pool), m))
	if err != nil {
		return nil, errors.Wrap(err, "create pricing engine")
	}

	s.Repository, err = lifecycle.NewRepository(storage, lifecycle.WithMeterProvider(m.MeterProvider()))
	if err != nil {
		return nil, errors.Wrap(err, "create cart repository")
	}

	return s, nil
}

func (s *Services) openStorage(ctx context.Context, cfg *Config, pg func() lifecycle.Storage) (lifecycle.Storage, error) {
	switch cfg.Storage.Backend {
	case BackendRedis:
		client, err := redisstore.Dial(ctx, cfg.Storage.Redis.Addr)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		s.Health.AddCheck("redis", 5*time.Second, 3, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return redisstore.NewCartStore(client, cfg.Storage.Redis.Prefix, cfg.Storage.Redis.TTL), nil
	case BackendSQLite:
		store, err := sqlite.Open(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = store.Close() })
		s.Health.AddCheck("sqlite", 5*time.Second, 1, store.Ping)
		return store, nil
	default:
		return pg(), nil
	}
}

// tracerProvider is the subset of app.Telemetry used by the engine.
type tracerProvider interface {
	TracerProvider() trace.TracerProvider
}

func engineConfig(cfg PricingConfig, lookup catalog.Lookup, tp tracerProvider) cart.Config {
	c := cart.Config{
		Currency:              cfg.Currency,
		PricesAreTaxInclusive: cfg.TaxInclusive,
		SelectSellingPrice:    cart.SelectByCurrency(),
		Lookup:                lookup,
		Extra:                 cfg.ProductAttributes,
	}
	if cfg.BasePriceIdentifier != "" {
		c.SelectBasePrice = cart.SelectByIdentifier(cfg.BasePriceIdentifier)
	}
	if tp != nil {
		c.TracerProvider = tp.TracerProvider()
	}
	return c
}
