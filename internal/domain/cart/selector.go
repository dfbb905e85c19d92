package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

// FirstPrice selects the first price variant. Variants without prices yield a
// zero placeholder so that misconfigured catalog entries can still be priced.
func FirstPrice(_ *catalog.Product, v *catalog.Variant, _ string) catalog.PriceVariant {
	if len(v.PriceVariants) == 0 {
		return catalog.PriceVariant{
			Price:      decimal.Zero,
			Identifier: catalog.UndefinedPriceIdentifier,
		}
	}
	return v.PriceVariants[0]
}

// SelectByIdentifier selects the price variant with the given identifier,
// preferring one in the cart currency. It falls back to FirstPrice.
func SelectByIdentifier(identifier string) PriceSelector {
	return func(p *catalog.Product, v *catalog.Variant, currency string) catalog.PriceVariant {
		var match *catalog.PriceVariant
		for i := range v.PriceVariants {
			pv := &v.PriceVariants[i]
			if pv.Identifier != identifier {
				continue
			}
			if pv.Currency == currency {
				return *pv
			}
			if match == nil {
				match = pv
			}
		}
		if match != nil {
			return *match
		}
		return FirstPrice(p, v, currency)
	}
}

// SelectByCurrency selects the first price variant in the cart currency.
// It falls back to FirstPrice.
func SelectByCurrency() PriceSelector {
	return func(p *catalog.Product, v *catalog.Variant, currency string) catalog.PriceVariant {
		for _, pv := range v.PriceVariants {
			if pv.Currency == currency {
				return pv
			}
		}
		return FirstPrice(p, v, currency)
	}
}
