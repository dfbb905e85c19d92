package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-engine/internal/domain/catalog"
)

const (
	productsBySKUsSQL = `SELECT p.id, COALESCE(t.name, p.name), p.path, p.vat_name, p.vat_percent, p.attributes
		FROM products p
		LEFT JOIN product_translations t ON t.product_id = p.id AND t.locale = $2
		WHERE p.id IN (SELECT product_id FROM product_variants WHERE sku = ANY($1))
		ORDER BY p.id`

	variantsByProductIDsSQL = `SELECT sku, product_id, name, attributes
		FROM product_variants WHERE product_id = ANY($1)
		ORDER BY product_id, position, sku`

	pricesBySKUsSQL = `SELECT sku, identifier, currency, price
		FROM variant_prices WHERE sku = ANY($1)
		ORDER BY sku, position, identifier, currency`

	imagesBySKUsSQL = `SELECT sku, url, width, height
		FROM variant_images WHERE sku = ANY($1)
		ORDER BY sku, position, url`

	upsertProductSQL = `INSERT INTO products (id, name, path, vat_name, vat_percent, attributes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			vat_name = EXCLUDED.vat_name,
			vat_percent = EXCLUDED.vat_percent,
			attributes = EXCLUDED.attributes`

	deleteVariantsSQL     = `DELETE FROM product_variants WHERE product_id = $1`
	deleteTranslationsSQL = `DELETE FROM product_translations WHERE product_id = $1`

	insertTranslationSQL = `INSERT INTO product_translations (product_id, locale, name) VALUES ($1, $2, $3)`

	insertVariantSQL = `INSERT INTO product_variants (sku, product_id, name, position, attributes)
		VALUES ($1, $2, $3, $4, $5)`

	insertPriceSQL = `INSERT INTO variant_prices (sku, identifier, currency, price, position)
		VALUES ($1, $2, $3, $4, $5)`

	insertImageSQL = `INSERT INTO variant_images (sku, url, width, height, position)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ catalog.Lookup = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Lookup backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Lookup resolves the products owning the requested SKUs, with all of their
// variants, and returns one projected entry per requested SKU.
func (r *CatalogRepository) Lookup(ctx context.Context, q catalog.Query) ([]*catalog.Product, error) {
	out := make([]*catalog.Product, len(q.SKUs))
	if len(q.SKUs) == 0 {
		return out, nil
	}

	rows, err := r.pool.Query(ctx, productsBySKUsSQL, q.SKUs, q.Locale)
	if err != nil {
		return nil, fmt.Errorf("querying products by skus: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}
	if len(products) == 0 {
		return out, nil
	}

	ids := make([]string, len(products))
	byID := make(map[string]*catalog.Product, len(products))
	for i := range products {
		ids[i] = products[i].ID
		byID[products[i].ID] = &products[i]
	}

	rows, err = r.pool.Query(ctx, variantsByProductIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, fmt.Errorf("scanning variants: %w", err)
	}
	for _, v := range variants {
		p := byID[v.productID]
		p.Variants = append(p.Variants, v.variant)
	}

	// Index after all appends so the pointers stay valid.
	skus := make([]string, 0, len(variants))
	bySKU := make(map[string]*catalog.Variant, len(variants))
	owner := make(map[string]*catalog.Product, len(variants))
	for i := range products {
		p := &products[i]
		for j := range p.Variants {
			v := &p.Variants[j]
			skus = append(skus, v.SKU)
			bySKU[v.SKU] = v
			owner[v.SKU] = p
		}
	}

	if err := r.loadPrices(ctx, skus, bySKU); err != nil {
		return nil, err
	}
	if q.WithImages {
		if err := r.loadImages(ctx, skus, bySKU); err != nil {
			return nil, err
		}
	}

	for i, sku := range q.SKUs {
		p, ok := owner[sku]
		if !ok {
			continue
		}
		out[i] = p.Project(q.Extra, shapeAt(q.PerProduct, i), shapeAt(q.PerVariant, i), q.WithImages)
	}
	return out, nil
}

func (r *CatalogRepository) loadPrices(ctx context.Context, skus []string, bySKU map[string]*catalog.Variant) error {
	rows, err := r.pool.Query(ctx, pricesBySKUsSQL, skus)
	if err != nil {
		return fmt.Errorf("querying prices: %w", err)
	}

	var (
		sku string
		pv  catalog.PriceVariant
	)
	_, err = pgx.ForEachRow(rows, []any{&sku, &pv.Identifier, &pv.Currency, &pv.Price}, func() error {
		v := bySKU[sku]
		v.PriceVariants = append(v.PriceVariants, pv)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning prices: %w", err)
	}
	return nil
}

func (r *CatalogRepository) loadImages(ctx context.Context, skus []string, bySKU map[string]*catalog.Variant) error {
	rows, err := r.pool.Query(ctx, imagesBySKUsSQL, skus)
	if err != nil {
		return fmt.Errorf("querying images: %w", err)
	}

	var (
		sku string
		img catalog.Image
	)
	_, err = pgx.ForEachRow(rows, []any{&sku, &img.URL, &img.Width, &img.Height}, func() error {
		v := bySKU[sku]
		v.Images = append(v.Images, img)
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning images: %w", err)
	}
	return nil
}

// UpsertProducts writes products in a single transaction. Existing variants,
// prices, images and translations of each product are replaced.
func (r *CatalogRepository) UpsertProducts(ctx context.Context, products []catalog.Product) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i := range products {
			if err := upsertProduct(ctx, tx, &products[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertProduct(ctx context.Context, tx pgx.Tx, p *catalog.Product) error {
	var (
		vatName    string
		vatPercent decimal.NullDecimal
	)
	if p.VATType != nil {
		vatName = p.VATType.Name
		vatPercent = decimal.NewNullDecimal(p.VATType.Percent)
	}

	b := &pgx.Batch{}
	b.Queue(upsertProductSQL, p.ID, p.Name, p.Path, vatName, vatPercent, attributesOrEmpty(p.Attributes))
	b.Queue(deleteVariantsSQL, p.ID)
	b.Queue(deleteTranslationsSQL, p.ID)
	for locale, name := range p.Translations {
		b.Queue(insertTranslationSQL, p.ID, locale, name)
	}
	for vi, v := range p.Variants {
		b.Queue(insertVariantSQL, v.SKU, p.ID, v.Name, vi, attributesOrEmpty(v.Attributes))
		for pi, pv := range v.PriceVariants {
			b.Queue(insertPriceSQL, v.SKU, pv.Identifier, pv.Currency, pv.Price, pi)
		}
		for ii, img := range v.Images {
			b.Queue(insertImageSQL, v.SKU, img.URL, img.Width, img.Height, ii)
		}
	}

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

type variantRow struct {
	productID string
	variant   catalog.Variant
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p          catalog.Product
		vatName    string
		vatPercent decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Path, &vatName, &vatPercent, &p.Attributes)
	if vatPercent.Valid {
		p.VATType = &catalog.VATType{Name: vatName, Percent: vatPercent.Decimal}
	}
	return p, err
}

func scanVariant(row pgx.CollectableRow) (variantRow, error) {
	var v variantRow
	err := row.Scan(&v.variant.SKU, &v.productID, &v.variant.Name, &v.variant.Attributes)
	return v, err
}

func shapeAt(shapes []catalog.Shape, i int) catalog.Shape {
	if i < len(shapes) {
		return shapes[i]
	}
	return catalog.Shape{}
}

func attributesOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
