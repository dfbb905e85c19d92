package cart

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

// NotFoundError indicates a requested SKU has no matching product or variant.
type NotFoundError struct {
	SKU string
	// Variant is set when a product was resolved but holds no variant for the SKU.
	Variant bool
}

func (e *NotFoundError) Error() string {
	if e.Variant {
		return fmt.Sprintf("could not find variant with sku %s", e.SKU)
	}
	return fmt.Sprintf("could not find product with sku %s", e.SKU)
}

// InvalidQuantityError indicates a line item has a negative quantity.
type InvalidQuantityError struct {
	SKU      string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must not be negative for sku %s: %d", e.SKU, e.Quantity)
}

// LineRequest is a requested SKU and quantity.
type LineRequest struct {
	SKU      string
	Quantity int
}

// Request is the raw cart payload to be priced.
type Request struct {
	Locale     string
	Items      []LineRequest
	WithImages bool
}

// Discount is a discount applied to a price.
type Discount struct {
	Amount  decimal.Decimal
	Percent decimal.Decimal
}

// Price holds the monetary breakdown of a line or cart.
type Price struct {
	Gross     decimal.Decimal
	Net       decimal.Decimal
	TaxAmount decimal.Decimal
	Currency  string
	Discounts []Discount
}

// DiscountAmount returns the amount of the first discount, or zero.
func (p Price) DiscountAmount() decimal.Decimal {
	if len(p.Discounts) == 0 {
		return decimal.Zero
	}
	return p.Discounts[0].Amount
}

// LineItem is a priced cart line.
type LineItem struct {
	Quantity     int
	Price        Price
	Product      catalog.Product
	Variant      catalog.Variant
	VariantPrice catalog.PriceVariant
	Images       []catalog.Image
}

// Cart is a fully priced cart.
type Cart struct {
	Items []LineItem
	Total Price
}
