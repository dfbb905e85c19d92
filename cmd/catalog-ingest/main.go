package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-engine/internal/ingest"
	"github.com/xenking/kart-engine/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog dumps")
	flag.StringVar(&pattern, "pattern", "catalog*.ndjson.gz", "glob of gzipped NDJSON catalog files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 500, "products per upsert transaction")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, pattern, databaseURL, batchSize); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, pattern, databaseURL string, batchSize int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil {
		return errors.Wrap(err, "glob catalog files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s in %s", pattern, dataDir)
	}

	slog.Info("scanning catalog files", slog.Int("files", len(files)))

	products, err := ingest.Load(ctx, files)
	if err != nil {
		return errors.Wrap(err, "load catalog")
	}

	slog.Info("catalog loaded", slog.Int("products", len(products)))

	if len(products) == 0 {
		slog.Info("no products to write")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL, "catalog-ingest")
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := ingest.Write(ctx, postgres.NewCatalogRepository(pool), products, batchSize); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}
