package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-engine/internal/domain/cart"
	"github.com/xenking/kart-engine/internal/domain/catalog"
	"github.com/xenking/kart-engine/internal/domain/lifecycle"
	"github.com/xenking/kart-engine/internal/fsm"
	"github.com/xenking/kart-engine/pkg/health"
)

// --- Mock implementations ---

type mockLookup struct {
	products map[string]*catalog.Product
}

func (m *mockLookup) Lookup(_ context.Context, q catalog.Query) ([]*catalog.Product, error) {
	out := make([]*catalog.Product, len(q.SKUs))
	for i, sku := range q.SKUs {
		out[i] = m.products[sku]
	}
	return out, nil
}

type mockStorage struct {
	data map[string][]byte
}

func (m *mockStorage) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, lifecycle.ErrNotFound
	}
	return v, nil
}

func (m *mockStorage) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = value
	return nil
}

// --- Helpers ---

const chairRequest = `{"locale":"en-US","items":[{"sku":"chair-red","quantity":2}]}`

type testCLI struct {
	*CLI
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	storage *mockStorage
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()

	chair := &catalog.Product{
		ID:      "chair",
		Name:    "Chair",
		VATType: &catalog.VATType{Name: "Standard", Percent: decimal.NewFromInt(25)},
		Variants: []catalog.Variant{{
			SKU: "chair-red",
			PriceVariants: []catalog.PriceVariant{
				{Price: decimal.NewFromInt(10), Currency: "EUR", Identifier: "default"},
				{Price: decimal.NewFromInt(12), Currency: "EUR", Identifier: "msrp"},
			},
		}},
	}
	lookup := &mockLookup{products: map[string]*catalog.Product{"chair-red": chair}}

	engine, err := cart.NewEngine(engineConfig(PricingConfig{
		Currency:            "EUR",
		BasePriceIdentifier: "msrp",
	}, lookup, nil))
	require.NoError(t, err)

	storage := &mockStorage{data: make(map[string][]byte)}
	repo, err := lifecycle.NewRepository(storage)
	require.NoError(t, err)

	tc := &testCLI{
		out:     &bytes.Buffer{},
		errOut:  &bytes.Buffer{},
		storage: storage,
	}
	tc.CLI = &CLI{
		Engine:     engine,
		Repository: repo,
		In:         strings.NewReader(chairRequest),
		Out:        tc.out,
		Err:        tc.errOut,
		NewID:      func() string { return "generated-id" },
	}
	return tc
}

func (tc *testCLI) run(t *testing.T, args ...string) error {
	t.Helper()
	tc.out.Reset()
	return tc.Run(context.Background(), args)
}

func (tc *testCLI) wrapper(t *testing.T) *lifecycle.Wrapper {
	t.Helper()
	w, err := lifecycle.Decode(bytes.TrimSpace(tc.out.Bytes()))
	require.NoError(t, err)
	return w
}

// --- Tests ---

func TestCLI_Price(t *testing.T) {
	tc := newTestCLI(t)

	require.NoError(t, tc.run(t, "price"))

	var got cart.Cart
	require.NoError(t, got.Decode(jx.DecodeBytes(tc.out.Bytes())))
	assert.True(t, decimal.NewFromInt(20).Equal(got.Total.Net), got.Total.Net.String())
	assert.True(t, decimal.NewFromInt(25).Equal(got.Total.Gross), got.Total.Gross.String())
	assert.True(t, decimal.NewFromInt(4).Equal(got.Total.DiscountAmount()))
	assert.Empty(t, tc.storage.data)
}

func TestCLI_PriceUnknownSKU(t *testing.T) {
	tc := newTestCLI(t)
	tc.In = strings.NewReader(`{"locale":"en-US","items":[{"sku":"nope","quantity":1}]}`)

	err := tc.run(t, "price")

	var nf *cart.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.SKU)
}

func TestCLI_PriceFromFile(t *testing.T) {
	tc := newTestCLI(t)
	tc.In = strings.NewReader("")

	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(chairRequest), 0o600))

	require.NoError(t, tc.run(t, "price", "-in", path))

	var got cart.Cart
	require.NoError(t, got.Decode(jx.DecodeBytes(tc.out.Bytes())))
	require.Len(t, got.Items, 1)
	assert.True(t, decimal.NewFromInt(25).Equal(got.Total.Gross), got.Total.Gross.String())

	err := tc.run(t, "price", "-in", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.json")
}

func TestCLI_Lifecycle(t *testing.T) {
	tc := newTestCLI(t)

	require.NoError(t, tc.run(t, "create", "-customer", "cust-1", "-attr", "channel=cli"))
	w := tc.wrapper(t)
	assert.Equal(t, "generated-id", w.CartID)
	assert.Equal(t, lifecycle.StateCart, w.State)
	require.NotNil(t, w.Customer)
	assert.Equal(t, "cust-1", w.Customer.Identifier)
	assert.Contains(t, tc.storage.data, "generated-id")

	require.NoError(t, tc.run(t, "place", "-id", "generated-id"))
	assert.Equal(t, lifecycle.StatePlaced, tc.wrapper(t).State)

	require.NoError(t, tc.run(t, "attach-order", "-id", "generated-id", "-order", "order-7"))
	assert.Equal(t, lifecycle.StatePaid, tc.wrapper(t).State)

	require.NoError(t, tc.run(t, "show", "-id", "generated-id"))
	w = tc.wrapper(t)
	assert.Equal(t, lifecycle.StatePaid, w.State)
	assert.Equal(t, "order-7", w.Extra.OrderID)
	assert.Equal(t, "cli", w.Extra.Attributes["channel"])
}

func TestCLI_SaveReprices(t *testing.T) {
	tc := newTestCLI(t)
	require.NoError(t, tc.run(t, "create", "-id", "cart-1"))

	tc.In = strings.NewReader(`{"locale":"en-US","items":[{"sku":"chair-red","quantity":5}]}`)
	require.NoError(t, tc.run(t, "save", "-id", "cart-1"))

	w := tc.wrapper(t)
	require.Len(t, w.Cart.Items, 1)
	assert.Equal(t, 5, w.Cart.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(50).Equal(w.Cart.Total.Net))
}

func TestCLI_SaveRejectedAfterPlace(t *testing.T) {
	tc := newTestCLI(t)
	require.NoError(t, tc.run(t, "create", "-id", "cart-1"))
	require.NoError(t, tc.run(t, "place", "-id", "cart-1"))

	err := tc.run(t, "save", "-id", "cart-1")

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, lifecycle.StatePlaced, rejected.State)
	assert.Equal(t, lifecycle.TransitionSave, rejected.Transition)

	err = tc.run(t, "place", "-id", "cart-1")
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, lifecycle.TransitionPlace, rejected.Transition)
}

func TestCLI_AttachOrderBeforePlace(t *testing.T) {
	tc := newTestCLI(t)
	require.NoError(t, tc.run(t, "create", "-id", "cart-1"))

	err := tc.run(t, "attach-order", "-id", "cart-1", "-order", "o-1")

	var trErr *fsm.TransitionError
	require.ErrorAs(t, err, &trErr)
}

func TestCLI_ShowMissing(t *testing.T) {
	tc := newTestCLI(t)

	err := tc.run(t, "show", "-id", "missing")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestCLI_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no command", args: nil},
		{name: "unknown command", args: []string{"explode"}},
		{name: "missing id", args: []string{"show"}},
		{name: "missing order", args: []string{"attach-order", "-id", "x"}},
		{name: "bad flag", args: []string{"price", "-bogus"}},
		{name: "bad attribute", args: []string{"create", "-attr", "novalue"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestCLI(t)
			if tt.name == "missing order" {
				require.NoError(t, tc.run(t, "create", "-id", "x"))
			}
			err := tc.run(t, tt.args...)
			require.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := engineConfig(PricingConfig{Currency: "SEK", TaxInclusive: true, ProductAttributes: []string{"brand"}}, &mockLookup{}, nil)

	assert.Equal(t, "SEK", cfg.Currency)
	assert.True(t, cfg.PricesAreTaxInclusive)
	assert.Nil(t, cfg.SelectBasePrice)
	assert.NotNil(t, cfg.SelectSellingPrice)
	assert.Equal(t, []string{"brand"}, cfg.Extra)
}

func TestCLI_Check(t *testing.T) {
	tc := newTestCLI(t)
	tc.Health = health.New(time.Millisecond)
	tc.Health.AddCheck("postgres", time.Second, 1, func(context.Context) error { return nil })

	require.NoError(t, tc.run(t, "check"))
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok"}}`, tc.out.String())

	tc.Health.AddCheck("redis", time.Second, 1, func(context.Context) error { return errors.New("refused") })
	err := tc.run(t, "check")
	require.Error(t, err)
	assert.Contains(t, tc.out.String(), `"redis":"refused"`)
}

func TestCLI_CheckWithoutHealth(t *testing.T) {
	tc := newTestCLI(t)
	require.Error(t, tc.run(t, "check"))
}
