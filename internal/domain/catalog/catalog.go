// Package catalog defines the product catalog consumed by the pricing engine.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// QueryVersion is the current version of the Query shape.
const QueryVersion = 1

// UndefinedPriceIdentifier identifies the placeholder price used for variants
// without any price variant.
const UndefinedPriceIdentifier = "undefined"

// Product is a catalog item with its purchasable variants.
type Product struct {
	ID         string
	Name       string
	Path       string
	VATType    *VATType
	Attributes map[string]string
	Variants   []Variant

	// Translations maps locale to product name. Only used when loading the catalog.
	Translations map[string]string
}

// VATType is the tax class of a product.
type VATType struct {
	Name    string
	Percent decimal.Decimal
}

// Variant is a purchasable SKU of a product.
type Variant struct {
	SKU           string
	Name          string
	Attributes    map[string]string
	Images        []Image
	PriceVariants []PriceVariant
}

// Image is a variant image.
type Image struct {
	URL    string
	Width  int
	Height int
}

// PriceVariant is a priced offer for a SKU under an identifier and currency.
type PriceVariant struct {
	Price      decimal.Decimal
	Currency   string
	Identifier string
}

// Shape is an attribute projection. A nil Shape selects no attributes.
type Shape struct {
	Attributes []string
}

// Query is a batch lookup request. PerProduct and PerVariant, when set, are
// aligned with SKUs.
type Query struct {
	Version    int
	SKUs       []string
	Locale     string
	Extra      []string
	PerProduct []Shape
	PerVariant []Shape
	WithImages bool
}

// Lookup batch-resolves SKUs to products.
//
// The result has one entry per requested SKU, by position. A nil entry means
// no product matched that SKU.
type Lookup interface {
	Lookup(ctx context.Context, q Query) ([]*Product, error)
}

// FindVariant returns the variant with the given SKU.
func (p *Product) FindVariant(sku string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].SKU == sku {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Project returns a copy of p with product and variant attributes restricted
// to the given shapes. Extra keys are kept on the product in addition to
// product.Attributes. Images are dropped unless withImages is set.
func (p *Product) Project(extra []string, product, variant Shape, withImages bool) *Product {
	out := *p
	out.Translations = nil
	out.Attributes = pick(p.Attributes, extra, product.Attributes)
	out.Variants = make([]Variant, len(p.Variants))
	for i, v := range p.Variants {
		v.Attributes = pick(v.Attributes, variant.Attributes)
		if !withImages {
			v.Images = nil
		}
		out.Variants[i] = v
	}
	return &out
}

func pick(src map[string]string, keys ...[]string) map[string]string {
	var out map[string]string
	for _, set := range keys {
		for _, k := range set {
			v, ok := src[k]
			if !ok {
				continue
			}
			if out == nil {
				out = make(map[string]string)
			}
			out[k] = v
		}
	}
	return out
}
