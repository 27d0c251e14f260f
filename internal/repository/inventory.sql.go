package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const lockVariantForUpdate = `-- name: LockVariantForUpdate :one
SELECT id, product_id, size, color, sku, stock_quantity, price_override_pence,
       is_active, created_at, updated_at
FROM product_variants
WHERE id = $1
FOR UPDATE
`

// LockVariantForUpdate takes a row lock on the variant. Callers must be
// inside a transaction for the lock to be held past the statement.
func (q *Queries) LockVariantForUpdate(ctx context.Context, id pgtype.UUID) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, lockVariantForUpdate, id)
	var i ProductVariant
	err := row.Scan(
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
	)
	return i, err
}

const updateVariantStock = `-- name: UpdateVariantStock :one
UPDATE product_variants
SET stock_quantity = $2, updated_at = now()
WHERE id = $1
RETURNING id, product_id, size, color, sku, stock_quantity, price_override_pence,
          is_active, created_at, updated_at
`

type UpdateVariantStockParams struct {
	ID            pgtype.UUID `json:"id"`
	StockQuantity int32       `json:"stock_quantity"`
}

func (q *Queries) UpdateVariantStock(ctx context.Context, arg UpdateVariantStockParams) (ProductVariant, error) {
	row := q.db.QueryRow(ctx, updateVariantStock, arg.ID, arg.StockQuantity)
	var i ProductVariant
	err := row.Scan(
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
	)
	return i, err
}

const listStockLevels = `-- name: ListStockLevels :many
SELECT v.id, v.product_id, p.name AS product_name, v.sku, v.size, v.color,
       v.stock_quantity, v.is_active
FROM product_variants v
JOIN products p ON p.id = v.product_id
WHERE ($1::int IS NULL OR v.stock_quantity <= $1::int)
ORDER BY v.stock_quantity, p.name, v.sku
LIMIT $2 OFFSET $3
`

type ListStockLevelsParams struct {
	LowStockThreshold pgtype.Int4 `json:"low_stock_threshold"`
	Limit             int32       `json:"limit"`
	Offset            int32       `json:"offset"`
}

type ListStockLevelsRow struct {
	ID            pgtype.UUID `json:"id"`
	ProductID     pgtype.UUID `json:"product_id"`
	ProductName   string      `json:"product_name"`
	Sku           string      `json:"sku"`
	Size          string      `json:"size"`
	Color         string      `json:"color"`
	StockQuantity int32       `json:"stock_quantity"`
	IsActive      bool        `json:"is_active"`
}

func (q *Queries) ListStockLevels(ctx context.Context, arg ListStockLevelsParams) ([]ListStockLevelsRow, error) {
	rows, err := q.db.Query(ctx, listStockLevels, arg.LowStockThreshold, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListStockLevelsRow{}
	for rows.Next() {
		var i ListStockLevelsRow
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.ProductName,
			&i.Sku,
			&i.Size,
			&i.Color,
			&i.StockQuantity,
			&i.IsActive,
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

const createInventoryMovement = `-- name: CreateInventoryMovement :one
INSERT INTO inventory_movements (
    product_variant_id, movement_type, quantity_change, previous_quantity, new_quantity, reference, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, product_variant_id, movement_type, quantity_change, previous_quantity,
          new_quantity, reference, notes, created_at
`

type CreateInventoryMovementParams struct {
	ProductVariantID pgtype.UUID `json:"product_variant_id"`
	MovementType     string      `json:"movement_type"`
	QuantityChange   int32       `json:"quantity_change"`
	PreviousQuantity int32       `json:"previous_quantity"`
	NewQuantity      int32       `json:"new_quantity"`
	Reference        pgtype.Text `json:"reference"`
	Notes            string      `json:"notes"`
}

func (q *Queries) CreateInventoryMovement(ctx context.Context, arg CreateInventoryMovementParams) (InventoryMovement, error) {
	row := q.db.QueryRow(ctx, createInventoryMovement,
		arg.ProductVariantID,
		arg.MovementType,
		arg.QuantityChange,
		arg.PreviousQuantity,
		arg.NewQuantity,
		arg.Reference,
		arg.Notes,
	)
	var i InventoryMovement
	err := row.Scan(
		&i.ID,
		&i.ProductVariantID,
		&i.MovementType,
		&i.QuantityChange,
		&i.PreviousQuantity,
		&i.NewQuantity,
		&i.Reference,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

const listInventoryMovements = `-- name: ListInventoryMovements :many
SELECT id, product_variant_id, movement_type, quantity_change, previous_quantity,
       new_quantity, reference, notes, created_at
FROM inventory_movements
WHERE product_variant_id = $1
ORDER BY created_at DESC, id
LIMIT $2
`

type ListInventoryMovementsParams struct {
	ProductVariantID pgtype.UUID `json:"product_variant_id"`
	Limit            int32       `json:"limit"`
}

func (q *Queries) ListInventoryMovements(ctx context.Context, arg ListInventoryMovementsParams) ([]InventoryMovement, error) {
	rows, err := q.db.Query(ctx, listInventoryMovements, arg.ProductVariantID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []InventoryMovement{}
	for rows.Next() {
		var i InventoryMovement
		if err := rows.Scan(
			&i.ID,
			&i.ProductVariantID,
			&i.MovementType,
			&i.QuantityChange,
			&i.PreviousQuantity,
			&i.NewQuantity,
			&i.Reference,
			&i.Notes,
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
