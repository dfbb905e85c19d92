package cart

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

func TestRequest_Decode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Request
		wantErr string
	}{
		{
			name:  "full payload",
			input: `{"locale":"en","withImages":true,"items":[{"sku":"a","quantity":2},{"sku":"b","quantity":0}]}`,
			want: Request{
				Locale:     "en",
				WithImages: true,
				Items:      []LineRequest{{SKU: "a", Quantity: 2}, {SKU: "b", Quantity: 0}},
			},
		},
		{
			name:  "withImages omitted",
			input: `{"locale":"no","items":[]}`,
			want:  Request{Locale: "no"},
		},
		{
			name:  "withImages null and unknown fields",
			input: `{"locale":"no","withImages":null,"coupon":"X","items":[{"sku":"a","quantity":1,"note":"gift"}]}`,
			want:  Request{Locale: "no", Items: []LineRequest{{SKU: "a", Quantity: 1}}},
		},
		{
			name:    "missing locale",
			input:   `{"items":[]}`,
			wantErr: `"locale" is required`,
		},
		{
			name:    "missing items",
			input:   `{"locale":"en"}`,
			wantErr: `"items" is required`,
		},
		{
			name:    "item without sku",
			input:   `{"locale":"en","items":[{"quantity":1}]}`,
			wantErr: `"sku" is required`,
		},
		{
			name:    "string quantity",
			input:   `{"locale":"en","items":[{"sku":"a","quantity":"1"}]}`,
			wantErr: `decode request field "items"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Request
			err := got.Decode(jx.DecodeStr(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCart_EncodeDecode(t *testing.T) {
	src := &Cart{
		Items: []LineItem{{
			Quantity: 2,
			Price: Price{
				Gross:     d("25"),
				Net:       d("20"),
				TaxAmount: d("5"),
				Currency:  "EUR",
				Discounts: []Discount{{Amount: d("4"), Percent: d("16.67")}},
			},
			Product:      *newTestProduct("p1", "25", variant("sku-1", price("10", "default"))),
			Variant:      variant("sku-1", price("10", "default")),
			VariantPrice: price("10", "default"),
			Images:       []catalog.Image{{URL: "https://cdn/1.jpg", Width: 10, Height: 20}},
		}},
		Total: Price{
			Gross:     d("25"),
			Net:       d("20"),
			TaxAmount: d("5"),
			Currency:  "EUR",
			Discounts: []Discount{{Amount: d("4"), Percent: d("16.67")}},
		},
	}

	var e jx.Encoder
	src.Encode(&e)

	var got Cart
	require.NoError(t, got.Decode(jx.DecodeBytes(e.Bytes())))

	require.Len(t, got.Items, 1)
	item := got.Items[0]
	assert.Equal(t, 2, item.Quantity)
	assertDecimal(t, "25", item.Price.Gross)
	assertDecimal(t, "16.67", item.Price.Discounts[0].Percent)
	assert.Equal(t, "p1", item.Product.ID)
	assertDecimal(t, "25", item.Product.VATType.Percent)
	assert.Equal(t, "sku-1", item.Variant.SKU)
	assert.Equal(t, "default", item.VariantPrice.Identifier)
	assert.Equal(t, src.Items[0].Images, item.Images)
	assertDecimal(t, "20", got.Total.Net)
	assert.Equal(t, "EUR", got.Total.Currency)
}
