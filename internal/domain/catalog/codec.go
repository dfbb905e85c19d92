package catalog

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-engine/internal/wire"
)

// Encode writes p as JSON.
func (p *Product) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	if p.Path != "" {
		e.FieldStart("path")
		e.Str(p.Path)
	}
	if p.VATType != nil {
		e.FieldStart("vatType")
		e.ObjStart()
		e.FieldStart("name")
		e.Str(p.VATType.Name)
		e.FieldStart("percent")
		wire.Decimal(e, p.VATType.Percent)
		e.ObjEnd()
	}
	if len(p.Attributes) > 0 {
		e.FieldStart("attributes")
		wire.StringMap(e, p.Attributes)
	}
	if len(p.Translations) > 0 {
		e.FieldStart("translations")
		wire.StringMap(e, p.Translations)
	}
	e.FieldStart("variants")
	e.ArrStart()
	for i := range p.Variants {
		p.Variants[i].Encode(e)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Decode reads p from JSON.
func (p *Product) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "path":
			p.Path, err = d.Str()
		case "vatType":
			if d.Next() == jx.Null {
				return d.Null()
			}
			vat := &VATType{}
			err = d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "name":
					vat.Name, err = d.Str()
				case "percent":
					vat.Percent, err = wire.DecodeDecimal(d)
				default:
					err = d.Skip()
				}
				return err
			})
			p.VATType = vat
		case "attributes":
			p.Attributes, err = wire.DecodeStringMap(d)
		case "translations":
			p.Translations, err = wire.DecodeStringMap(d)
		case "variants":
			err = d.Arr(func(d *jx.Decoder) error {
				var v Variant
				if err := v.Decode(d); err != nil {
					return err
				}
				p.Variants = append(p.Variants, v)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode product field %q", key)
		}
		return nil
	})
}

// Encode writes v as JSON.
func (v *Variant) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("sku")
	e.Str(v.SKU)
	e.FieldStart("name")
	e.Str(v.Name)
	if len(v.Attributes) > 0 {
		e.FieldStart("attributes")
		wire.StringMap(e, v.Attributes)
	}
	if len(v.Images) > 0 {
		e.FieldStart("images")
		EncodeImages(e, v.Images)
	}
	e.FieldStart("priceVariants")
	e.ArrStart()
	for i := range v.PriceVariants {
		v.PriceVariants[i].Encode(e)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// Decode reads v from JSON.
func (v *Variant) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			v.SKU, err = d.Str()
		case "name":
			v.Name, err = d.Str()
		case "attributes":
			v.Attributes, err = wire.DecodeStringMap(d)
		case "images":
			v.Images, err = DecodeImages(d)
		case "priceVariants":
			err = d.Arr(func(d *jx.Decoder) error {
				var pv PriceVariant
				if err := pv.Decode(d); err != nil {
					return err
				}
				v.PriceVariants = append(v.PriceVariants, pv)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode variant field %q", key)
		}
		return nil
	})
}

// Encode writes pv as JSON.
func (pv *PriceVariant) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("price")
	wire.Decimal(e, pv.Price)
	if pv.Currency != "" {
		e.FieldStart("currency")
		e.Str(pv.Currency)
	}
	e.FieldStart("identifier")
	e.Str(pv.Identifier)
	e.ObjEnd()
}

// Decode reads pv from JSON.
func (pv *PriceVariant) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "price":
			pv.Price, err = wire.DecodeDecimal(d)
		case "currency":
			pv.Currency, err = d.Str()
		case "identifier":
			pv.Identifier, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// EncodeImages writes images as a JSON array.
func EncodeImages(e *jx.Encoder, images []Image) {
	e.ArrStart()
	for _, img := range images {
		e.ObjStart()
		e.FieldStart("url")
		e.Str(img.URL)
		if img.Width > 0 {
			e.FieldStart("width")
			e.Int(img.Width)
		}
		if img.Height > 0 {
			e.FieldStart("height")
			e.Int(img.Height)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
}

// DecodeImages reads a JSON array of images.
func DecodeImages(d *jx.Decoder) ([]Image, error) {
	var images []Image
	err := d.Arr(func(d *jx.Decoder) error {
		var img Image
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "url":
				img.URL, err = d.Str()
			case "width":
				img.Width, err = d.Int()
			case "height":
				img.Height, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		images = append(images, img)
		return nil
	})
	return images, err
}
