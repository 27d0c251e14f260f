package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listCategories = `-- name: ListCategories :many
SELECT id, name, slug, description, sort_order, created_at
FROM categories
ORDER BY sort_order, name
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		var i Category
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Slug,
			&i.Description,
			&i.SortOrder,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `-- name: GetCategory :one
SELECT id, name, slug, description, sort_order, created_at
FROM categories
WHERE id = $1
`

func (q *Queries) GetCategory(ctx context.Context, id pgtype.UUID) (Category, error) {
	row := q.db.QueryRow(ctx, getCategory, id)
	var i Category
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Slug,
		&i.Description,
		&i.SortOrder,
		&i.CreatedAt,
	)
	return i, err
}

const listActiveProducts = `-- name: ListActiveProducts :many
SELECT p.id, p.category_id, p.name, p.slug, p.description, p.price_pence, p.image_url,
       p.is_active, p.is_featured, p.created_at, p.updated_at
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
WHERE p.is_active
  AND ($1::text IS NULL OR c.slug = $1::text)
  AND (NOT $2::boolean OR p.is_featured)
ORDER BY p.is_featured DESC, p.name
`

type ListActiveProductsParams struct {
	CategorySlug pgtype.Text `json:"category_slug"`
	FeaturedOnly bool        `json:"featured_only"`
}

func (q *Queries) ListActiveProducts(ctx context.Context, arg ListActiveProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProducts, arg.CategorySlug, arg.FeaturedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.CategoryID,
			&i.Name,
			&i.Slug,
			&i.Description,
			&i.PricePence,
			&i.ImageUrl,
			&i.IsActive,
			&i.IsFeatured,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getActiveProductBySlug = `-- name: GetActiveProductBySlug :one
SELECT id, category_id, name, slug, description, price_pence, image_url,
       is_active, is_featured, created_at, updated_at
FROM products
WHERE slug = $1 AND is_active
`

func (q *Queries) GetActiveProductBySlug(ctx context.Context, slug string) (Product, error) {
	row := q.db.QueryRow(ctx, getActiveProductBySlug, slug)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Slug,
		&i.Description,
		&i.PricePence,
		&i.ImageUrl,
		&i.IsActive,
		&i.IsFeatured,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listActiveVariantsByProduct = `-- name: ListActiveVariantsByProduct :many
SELECT id, product_id, size, color, sku, stock_quantity, price_override_pence,
       is_active, created_at, updated_at
FROM product_variants
WHERE product_id = $1 AND is_active
ORDER BY sku
`

func (q *Queries) ListActiveVariantsByProduct(ctx context.Context, productID pgtype.UUID) ([]ProductVariant, error) {
	rows, err := q.db.Query(ctx, listActiveVariantsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductVariant{}
	for rows.Next() {
		var i ProductVariant
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.Size,
			&i.Color,
			&i.Sku,
			&i.StockQuantity,
			&i.PriceOverridePence,
			&i.IsActive,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getVariantWithProduct = `-- name: GetVariantWithProduct :one
SELECT v.id, v.product_id, v.size, v.color, v.sku, v.stock_quantity, v.price_override_pence,
       v.is_active, p.name AS product_name, p.slug AS product_slug,
       p.price_pence AS product_price_pence, p.is_active AS product_is_active, p.image_url
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE v.id = $1
`

type GetVariantWithProductRow struct {
	ID                 pgtype.UUID `json:"id"`
	ProductID          pgtype.UUID `json:"product_id"`
	Size               string      `json:"size"`
	Color              string      `json:"color"`
	Sku                string      `json:"sku"`
	StockQuantity      int32       `json:"stock_quantity"`
	PriceOverridePence pgtype.Int8 `json:"price_override_pence"`
	IsActive           bool        `json:"is_active"`
	ProductName        string      `json:"product_name"`
	ProductSlug        string      `json:"product_slug"`
	ProductPricePence  int64       `json:"product_price_pence"`
	ProductIsActive    bool        `json:"product_is_active"`
	ImageUrl           string      `json:"image_url"`
}

func (q *Queries) GetVariantWithProduct(ctx context.Context, id pgtype.UUID) (GetVariantWithProductRow, error) {
	row := q.db.QueryRow(ctx, getVariantWithProduct, id)
	var i GetVariantWithProductRow
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Size,
		&i.Color,
		&i.Sku,
		&i.StockQuantity,
		&i.PriceOverridePence,
		&i.IsActive,
		&i.ProductName,
		&i.ProductSlug,
		&i.ProductPricePence,
		&i.ProductIsActive,
		&i.ImageUrl,
	)
	return i, err
}
