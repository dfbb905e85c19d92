package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

// --- Mock implementations ---

type mockUpserter struct {
	batches [][]catalog.Product
	err     error
}

func (m *mockUpserter) UpsertProducts(_ context.Context, products []catalog.Product) error {
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, products)
	return nil
}

// --- Helpers ---

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func productLine(id string, skus ...string) string {
	var b strings.Builder
	b.WriteString(`{"id":"` + id + `","name":"` + id + `","variants":[`)
	for i, sku := range skus {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"sku":"` + sku + `","priceVariants":[{"price":"9.99","currency":"EUR","identifier":"default"}]}`)
	}
	b.WriteString("]}")
	return b.String()
}

// --- Tests ---

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "catalog1.ndjson.gz", productLine("chair", "chair-red", "chair-blue"), ""),
		writeGz(t, dir, "catalog2.ndjson.gz", productLine("lamp", "lamp-1"), productLine("desk", "desk-1")),
	}

	products, err := Load(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, products, 3)

	assert.Equal(t, "chair", products[0].ID)
	require.Len(t, products[0].Variants, 2)
	assert.Equal(t, "9.99", products[0].Variants[0].PriceVariants[0].Price.String())
	assert.Equal(t, "lamp", products[1].ID)
	assert.Equal(t, "desk", products[2].ID)
}

func TestLoad_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", productLine("chair", "shared", "chair-red")),
		writeGz(t, dir, "b.gz", productLine("stool", "shared")),
		writeGz(t, dir, "c.gz", productLine("lamp", "lamp-1")),
	}

	_, err := Load(context.Background(), files)

	var dupErr *DuplicateSKUError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, []string{"shared"}, dupErr.SKUs)
}

func TestLoad_DuplicateWithinFile(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.gz", productLine("chair", "x"), productLine("stool", "x", "y")),
	}

	_, err := Load(context.Background(), files)

	var dupErr *DuplicateSKUError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, []string{"x"}, dupErr.SKUs)
}

func TestLoad_InvalidProducts(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr string
	}{
		{name: "malformed json", line: `{"id":`, wantErr: ":1"},
		{name: "missing id", line: `{"name":"x","variants":[]}`, wantErr: "product without id"},
		{name: "missing sku", line: `{"id":"p","variants":[{"name":"v"}]}`, wantErr: "variant without sku"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeGz(t, t.TempDir(), "bad.gz", tt.line)

			_, err := Load(context.Background(), []string{path})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), []string{filepath.Join(t.TempDir(), "nope.gz")})
	require.Error(t, err)
}

func TestWrite_Batches(t *testing.T) {
	products := make([]catalog.Product, 5)
	for i := range products {
		products[i].ID = string(rune('a' + i))
	}
	store := &mockUpserter{}

	require.NoError(t, Write(context.Background(), store, products, 2))

	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[0], 2)
	assert.Len(t, store.batches[2], 1)
	assert.Equal(t, "e", store.batches[2][0].ID)
}

func TestWrite_Error(t *testing.T) {
	store := &mockUpserter{err: errors.New("connection refused")}

	err := Write(context.Background(), store, []catalog.Product{{ID: "a"}}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert products 0-1")
}

func TestDuplicateSKUError_Truncates(t *testing.T) {
	skus := make([]string, 12)
	for i := range skus {
		skus[i] = string(rune('a' + i))
	}

	msg := (&DuplicateSKUError{SKUs: skus}).Error()
	assert.Contains(t, msg, "and 2 more")
	assert.NotContains(t, msg, ", k")
}
