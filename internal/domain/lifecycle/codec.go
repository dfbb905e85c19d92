package lifecycle

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-engine/internal/wire"
)

// EnvelopeVersion is the version of the encoded Wrapper.
const EnvelopeVersion = 1

// Encode writes w as a versioned JSON envelope.
func (w *Wrapper) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("version")
	e.Int(EnvelopeVersion)
	e.FieldStart("cartId")
	e.Str(w.CartID)
	e.FieldStart("state")
	e.Str(string(w.State))
	if w.Customer != nil {
		e.FieldStart("customer")
		w.Customer.encode(e)
	}
	e.FieldStart("extra")
	w.Extra.encode(e)
	e.FieldStart("cart")
	w.Cart.Encode(e)
	e.ObjEnd()
}

// Decode reads w from a versioned JSON envelope.
func (w *Wrapper) Decode(d *jx.Decoder) error {
	version := 0
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "version":
			version, err = d.Int()
		case "cartId":
			w.CartID, err = d.Str()
		case "state":
			var s string
			s, err = d.Str()
			w.State = State(s)
		case "customer":
			if d.Next() == jx.Null {
				return d.Null()
			}
			w.Customer = &Customer{}
			err = w.Customer.decode(d)
		case "extra":
			err = w.Extra.decode(d)
		case "cart":
			err = w.Cart.Decode(d)
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode wrapper field %q", key)
		}
		return nil
	}); err != nil {
		return err
	}

	if version < 1 || version > EnvelopeVersion {
		return errors.Errorf("unsupported envelope version %d", version)
	}
	if w.CartID == "" {
		return errors.New("envelope has no cart id")
	}
	return nil
}

func (c *Customer) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("identifier")
	e.Str(c.Identifier)
	if c.Email != "" {
		e.FieldStart("email")
		e.Str(c.Email)
	}
	if c.FirstName != "" {
		e.FieldStart("firstName")
		e.Str(c.FirstName)
	}
	if c.LastName != "" {
		e.FieldStart("lastName")
		e.Str(c.LastName)
	}
	e.ObjEnd()
}

func (c *Customer) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "identifier":
			c.Identifier, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		case "firstName":
			c.FirstName, err = d.Str()
		case "lastName":
			c.LastName, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (x *Extra) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("version")
	e.Int(x.Version)
	if x.OrderID != "" {
		e.FieldStart("orderId")
		e.Str(x.OrderID)
	}
	if len(x.Attributes) > 0 {
		e.FieldStart("attributes")
		wire.StringMap(e, x.Attributes)
	}
	e.ObjEnd()
}

func (x *Extra) decode(d *jx.Decoder) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "version":
			x.Version, err = d.Int()
		case "orderId":
			x.OrderID, err = d.Str()
		case "attributes":
			x.Attributes, err = wire.DecodeStringMap(d)
		default:
			err = d.Skip()
		}
		return err
	})
}
