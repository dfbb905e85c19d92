// Package cart prices raw cart requests against the product catalog.
package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

const (
	moneyScale   = 2
	percentScale = 2
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// PriceSelector picks the price variant used for a product variant.
type PriceSelector func(p *catalog.Product, v *catalog.Variant, currency string) catalog.PriceVariant

// ShapeFunc returns the attribute projection for the SKU requested at index.
type ShapeFunc func(sku string, index int) catalog.Shape

// Config configures an Engine.
type Config struct {
	// Currency of every price in the computed cart. Required.
	Currency string
	// PricesAreTaxInclusive treats catalog prices as gross amounts.
	PricesAreTaxInclusive bool
	// SelectSellingPrice defaults to FirstPrice.
	SelectSellingPrice PriceSelector
	// SelectBasePrice defaults to the selling price, i.e. no discount.
	SelectBasePrice PriceSelector
	// Lookup resolves SKUs. Required.
	Lookup catalog.Lookup

	Extra      []string
	PerProduct ShapeFunc
	PerVariant ShapeFunc

	TracerProvider trace.TracerProvider
}

// Engine computes priced carts. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	tracer trace.Tracer
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Currency == "" {
		return nil, errors.New("currency is required")
	}
	if cfg.Lookup == nil {
		return nil, errors.New("catalog lookup is required")
	}
	if cfg.SelectSellingPrice == nil {
		cfg.SelectSellingPrice = FirstPrice
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = noop.NewTracerProvider()
	}

	return &Engine{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer("github.com/xenking/kart-engine/internal/domain/cart"),
	}, nil
}

// Currency returns the output currency of the engine.
func (e *Engine) Currency() string {
	return e.cfg.Currency
}

// Compute prices req with a single catalog lookup. It fails with
// *NotFoundError if any SKU cannot be resolved; no partial cart is returned.
func (e *Engine) Compute(ctx context.Context, req Request) (_ *Cart, rerr error) {
	ctx, span := e.tracer.Start(ctx, "cart.Compute",
		trace.WithAttributes(
			attribute.Int("cart.items", len(req.Items)),
			attribute.String("cart.locale", req.Locale),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	skus := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 0 {
			return nil, &InvalidQuantityError{SKU: item.SKU, Quantity: item.Quantity}
		}
		skus[i] = item.SKU
	}

	entries, err := e.cfg.Lookup.Lookup(ctx, e.query(req, skus))
	if err != nil {
		return nil, errors.Wrap(err, "lookup skus")
	}

	products := make([]*catalog.Product, 0, len(entries))
	for _, p := range entries {
		if p != nil {
			products = append(products, p)
		}
	}

	var (
		items    = make([]LineItem, 0, len(req.Items))
		gross    = decimal.Zero
		net      = decimal.Zero
		tax      = decimal.Zero
		discount = decimal.Zero
	)
	for i, item := range req.Items {
		product, variant, ok := findVariant(products, item.SKU)
		if !ok {
			resolved := i < len(entries) && entries[i] != nil
			return nil, &NotFoundError{SKU: item.SKU, Variant: resolved}
		}

		line := e.priceLine(product, variant, item, req.WithImages)
		items = append(items, line)

		gross = gross.Add(line.Price.Gross)
		net = net.Add(line.Price.Net)
		tax = tax.Add(line.Price.TaxAmount)
		discount = discount.Add(line.Price.DiscountAmount())
	}

	c := &Cart{
		Items: items,
		Total: Price{
			Gross:     gross,
			Net:       net,
			TaxAmount: tax,
			Currency:  e.cfg.Currency,
			Discounts: []Discount{{
				Amount:  discount,
				Percent: cartDiscountPercent(net, discount),
			}},
		},
	}

	zctx.From(ctx).Debug("Priced cart",
		zap.Int("items", len(items)),
		zap.String("gross", gross.String()),
		zap.String("net", net.String()),
		zap.String("currency", e.cfg.Currency),
	)

	return c, nil
}

func (e *Engine) query(req Request, skus []string) catalog.Query {
	q := catalog.Query{
		Version:    catalog.QueryVersion,
		SKUs:       skus,
		Locale:     req.Locale,
		Extra:      e.cfg.Extra,
		WithImages: req.WithImages,
	}
	if e.cfg.PerProduct != nil {
		q.PerProduct = make([]catalog.Shape, len(skus))
		for i, sku := range skus {
			q.PerProduct[i] = e.cfg.PerProduct(sku, i)
		}
	}
	if e.cfg.PerVariant != nil {
		q.PerVariant = make([]catalog.Shape, len(skus))
		for i, sku := range skus {
			q.PerVariant[i] = e.cfg.PerVariant(sku, i)
		}
	}
	return q
}

func (e *Engine) priceLine(p *catalog.Product, v *catalog.Variant, item LineRequest, withImages bool) LineItem {
	selling := e.cfg.SelectSellingPrice(p, v, e.cfg.Currency)
	base := selling
	if e.cfg.SelectBasePrice != nil {
		base = e.cfg.SelectBasePrice(p, v, e.cfg.Currency)
	}

	qty := decimal.NewFromInt(int64(item.Quantity))
	sellingAmount := selling.Price.Mul(qty)
	baseAmount := base.Price.Mul(qty)

	rate := decimal.Zero
	if p.VATType != nil {
		rate = p.VATType.Percent.Div(hundred)
	}

	var net, gross decimal.Decimal
	if e.cfg.PricesAreTaxInclusive {
		gross = sellingAmount
		net = sellingAmount.Div(one.Add(rate))
	} else {
		net = sellingAmount
		gross = sellingAmount.Mul(one.Add(rate))
	}
	net = net.Round(moneyScale)
	gross = gross.Round(moneyScale)

	amount := baseAmount.Sub(sellingAmount)
	percent := decimal.Zero
	if baseAmount.IsPositive() {
		percent = amount.Div(baseAmount).Mul(hundred).Round(percentScale)
	}

	line := LineItem{
		Quantity: item.Quantity,
		Price: Price{
			Gross:     gross,
			Net:       net,
			TaxAmount: gross.Sub(net),
			Currency:  e.cfg.Currency,
			Discounts: []Discount{{Amount: amount, Percent: percent}},
		},
		Product:      *p,
		Variant:      *v,
		VariantPrice: selling,
	}
	if withImages {
		line.Images = v.Images
	}
	return line
}

// cartDiscountPercent derives the cart-level discount from the aggregate,
// treating net + discount as the pre-discount amount.
func cartDiscountPercent(net, discount decimal.Decimal) decimal.Decimal {
	base := net.Add(discount)
	if base.IsZero() {
		return decimal.Zero
	}
	return discount.Div(base).Mul(hundred).Round(percentScale)
}

func findVariant(products []*catalog.Product, sku string) (*catalog.Product, *catalog.Variant, bool) {
	for _, p := range products {
		if v, ok := p.FindVariant(sku); ok {
			return p, v, true
		}
	}
	return nil, nil, false
}
