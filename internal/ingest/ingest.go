// Package ingest loads gzipped NDJSON catalog dumps and writes them to the
// catalog store.
//
// Loading runs in two passes over the files. Pass 1 builds one bloom filter of
// SKUs per file. Pass 2 decodes the products and checks every SKU against the
// other files' filters; only SKUs that hit a filter are tracked exactly, so a
// SKU owned by products in two files is found without holding every SKU of
// every file in one set.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"slices"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
	maxLineSize   = 4 << 20
)

// DuplicateSKUError lists SKUs owned by more than one product.
type DuplicateSKUError struct {
	SKUs []string
}

func (e *DuplicateSKUError) Error() string {
	const shown = 10
	skus := e.SKUs
	suffix := ""
	if len(skus) > shown {
		suffix = fmt.Sprintf(" and %d more", len(skus)-shown)
		skus = skus[:shown]
	}
	return fmt.Sprintf("duplicate skus: %s%s", strings.Join(skus, ", "), suffix)
}

// Upserter stores products.
type Upserter interface {
	UpsertProducts(ctx context.Context, products []catalog.Product) error
}

type fileResult struct {
	products   []catalog.Product
	duplicates []string
	candidates map[string]uint
}

// Load decodes every product in files. It fails with *DuplicateSKUError when
// a SKU appears in more than one product, within a file or across files.
func Load(ctx context.Context, files []string) ([]catalog.Product, error) {
	if len(files) > bits.UintSize {
		return nil, errors.Errorf("too many files: %d (max %d)", len(files), bits.UintSize)
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: decoding products")

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(decodeFile(gctx, i, f, filters, results))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	var duplicates []string
	total := 0
	for _, r := range results {
		duplicates = append(duplicates, r.duplicates...)
		total += len(r.products)
		for sku, mask := range r.candidates {
			merged[sku] |= mask
		}
	}
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			duplicates = append(duplicates, sku)
		}
	}
	if len(duplicates) > 0 {
		slices.Sort(duplicates)
		return nil, &DuplicateSKUError{SKUs: slices.Compact(duplicates)}
	}

	products := make([]catalog.Product, 0, total)
	for _, r := range results {
		products = append(products, r.products...)
	}
	return products, nil
}

// Write upserts products in batches of batchSize.
func Write(ctx context.Context, store Upserter, products []catalog.Product, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(products)
	}
	slog.Info("writing products to database", slog.Int("count", len(products)))

	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))
		if err := store.UpsertProducts(ctx, products[start:end]); err != nil {
			return errors.Wrapf(err, "upsert products %d-%d", start, end)
		}
		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(products)))
	}
	return nil
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			if err := streamGzFile(ctx, f, func(p *catalog.Product) error {
				for _, v := range p.Variants {
					filter.AddString(v.SKU)
					count++
				}
				return nil
			}); err != nil {
				return errors.Wrapf(err, "build filter for file %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("skus", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func decodeFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		var (
			r       = fileResult{candidates: make(map[string]uint)}
			seen    = make(map[string]struct{})
			fileBit = uint(1) << uint(idx)
		)

		if err := streamGzFile(ctx, path, func(p *catalog.Product) error {
			if p.ID == "" {
				return errors.New("product without id")
			}
			for _, v := range p.Variants {
				if v.SKU == "" {
					return errors.Errorf("product %s has a variant without sku", p.ID)
				}
				if _, dup := seen[v.SKU]; dup {
					r.duplicates = append(r.duplicates, v.SKU)
					continue
				}
				seen[v.SKU] = struct{}{}

				for j, f := range filters {
					if j != idx && f.TestString(v.SKU) {
						r.candidates[v.SKU] |= fileBit
						break
					}
				}
			}

			r.products = append(r.products, *p)
			if len(r.products)%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.Int("file", idx+1), slog.Int("products", len(r.products)))
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "decode file %d", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Int("products", len(r.products)),
			slog.Int("candidates", len(r.candidates)),
		)

		results[idx] = r
		return nil
	}
}

// streamGzFile opens a gzip-compressed NDJSON file and calls fn for each
// decoded product. Blank lines are skipped.
func streamGzFile(ctx context.Context, path string, fn func(p *catalog.Product) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var p catalog.Product
		if err := p.Decode(jx.DecodeBytes(raw)); err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
		if err := fn(&p); err != nil {
			return errors.Wrapf(err, "%s:%d", path, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
