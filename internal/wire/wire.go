// Package wire holds jx helpers shared by the domain codecs.
package wire

import (
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Decimal writes d as a JSON number.
func Decimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

// DecodeDecimal reads a JSON number or numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

// StringMap writes m as a JSON object with sorted keys.
func StringMap(e *jx.Encoder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.ObjStart()
	for _, k := range keys {
		e.FieldStart(k)
		e.Str(m[k])
	}
	e.ObjEnd()
}

// DecodeStringMap reads a JSON object of strings. Null yields a nil map.
func DecodeStringMap(d *jx.Decoder) (map[string]string, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}

	m := make(map[string]string)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "value of %q", key)
		}
		m[key] = v
		return nil
	}); err != nil {
		return nil, err
	}
	return m, nil
}
