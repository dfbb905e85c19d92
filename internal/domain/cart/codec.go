package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-engine/internal/domain/catalog"
	"github.com/xenking/kart-engine/internal/wire"
)

// Decode reads the request wire shape:
//
//	{"locale": "en", "withImages": true, "items": [{"sku": "a", "quantity": 1}]}
func (r *Request) Decode(d *jx.Decoder) error {
	var hasLocale, hasItems bool
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "locale":
			hasLocale = true
			r.Locale, err = d.Str()
		case "withImages":
			if d.Next() == jx.Null {
				return d.Null()
			}
			r.WithImages, err = d.Bool()
		case "items":
			hasItems = true
			err = d.Arr(func(d *jx.Decoder) error {
				var item LineRequest
				if err := item.Decode(d); err != nil {
					return err
				}
				r.Items = append(r.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode request field %q", key)
		}
		return nil
	}); err != nil {
		return err
	}

	if !hasLocale {
		return errors.New(`request field "locale" is required`)
	}
	if !hasItems {
		return errors.New(`request field "items" is required`)
	}
	return nil
}

// Encode writes the request wire shape.
func (r *Request) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("locale")
	e.Str(r.Locale)
	if r.WithImages {
		e.FieldStart("withImages")
		e.Bool(true)
	}
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range r.Items {
		e.ObjStart()
		e.FieldStart("sku")
		e.Str(item.SKU)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Decode reads a single request line.
func (l *LineRequest) Decode(d *jx.Decoder) error {
	var hasSKU bool
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			hasSKU = true
			l.SKU, err = d.Str()
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return err
	}
	if !hasSKU {
		return errors.New(`item field "sku" is required`)
	}
	return nil
}

// Encode writes c as JSON.
func (c *Cart) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for i := range c.Items {
		c.Items[i].Encode(e)
	}
	e.ArrEnd()
	e.FieldStart("total")
	c.Total.Encode(e)
	e.ObjEnd()
}

// Decode reads c from JSON.
func (c *Cart) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var item LineItem
				if err := item.Decode(d); err != nil {
					return err
				}
				c.Items = append(c.Items, item)
				return nil
			})
		case "total":
			err = c.Total.Decode(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode cart field %q", key)
		}
		return nil
	})
}

// Encode writes l as JSON.
func (l *LineItem) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("price")
	l.Price.Encode(e)
	e.FieldStart("product")
	l.Product.Encode(e)
	e.FieldStart("variant")
	l.Variant.Encode(e)
	e.FieldStart("variantPrice")
	l.VariantPrice.Encode(e)
	if len(l.Images) > 0 {
		e.FieldStart("images")
		catalog.EncodeImages(e, l.Images)
	}
	e.ObjEnd()
}

// Decode reads l from JSON.
func (l *LineItem) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "quantity":
			l.Quantity, err = d.Int()
		case "price":
			err = l.Price.Decode(d)
		case "product":
			err = l.Product.Decode(d)
		case "variant":
			err = l.Variant.Decode(d)
		case "variantPrice":
			err = l.VariantPrice.Decode(d)
		case "images":
			l.Images, err = catalog.DecodeImages(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

// Encode writes p as JSON.
func (p *Price) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("gross")
	wire.Decimal(e, p.Gross)
	e.FieldStart("net")
	wire.Decimal(e, p.Net)
	e.FieldStart("taxAmount")
	wire.Decimal(e, p.TaxAmount)
	e.FieldStart("currency")
	e.Str(p.Currency)
	e.FieldStart("discounts")
	e.ArrStart()
	for _, disc := range p.Discounts {
		e.ObjStart()
		e.FieldStart("amount")
		wire.Decimal(e, disc.Amount)
		e.FieldStart("percent")
		wire.Decimal(e, disc.Percent)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Decode reads p from JSON.
func (p *Price) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "gross":
			p.Gross, err = wire.DecodeDecimal(d)
		case "net":
			p.Net, err = wire.DecodeDecimal(d)
		case "taxAmount":
			p.TaxAmount, err = wire.DecodeDecimal(d)
		case "currency":
			p.Currency, err = d.Str()
		case "discounts":
			err = d.Arr(func(d *jx.Decoder) error {
				var disc Discount
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "amount":
						disc.Amount, err = wire.DecodeDecimal(d)
					case "percent":
						disc.Percent, err = wire.DecodeDecimal(d)
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				p.Discounts = append(p.Discounts, disc)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
}
