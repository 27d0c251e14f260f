package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_email, customer_name, customer_phone,
       shipping_address, billing_address, shipping_method,
       subtotal_pence, shipping_pence, tax_pence, total_pence, currency,
       status, payment_status, fulfillment_status,
       stripe_session_id, stripe_payment_intent_id, stripe_session_url, idempotency_key,
       paid_at, cancelled_at,
       created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.CustomerEmail,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.ShippingAddress,
		&i.BillingAddress,
		&i.ShippingMethod,
		&i.SubtotalPence,
		&i.ShippingPence,
		&i.TaxPence,
		&i.TotalPence,
		&i.Currency,
		&i.Status,
		&i.PaymentStatus,
		&i.FulfillmentStatus,
		&i.StripeSessionID,
		&i.StripePaymentIntentID,
		&i.StripeSessionUrl,
		&i.IdempotencyKey,
		&i.PaidAt,
		&i.CancelledAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, customer_email, customer_name, customer_phone,
    shipping_address, billing_address, shipping_method,
    subtotal_pence, shipping_pence, tax_pence, total_pence, currency, idempotency_key
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber     string      `json:"order_number"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerName    string      `json:"customer_name"`
	CustomerPhone   string      `json:"customer_phone"`
	ShippingAddress []byte      `json:"shipping_address"`
	BillingAddress  []byte      `json:"billing_address"`
	ShippingMethod  string      `json:"shipping_method"`
	SubtotalPence   int64       `json:"subtotal_pence"`
	ShippingPence   int64       `json:"shipping_pence"`
	TaxPence        int64       `json:"tax_pence"`
	TotalPence      int64       `json:"total_pence"`
	Currency        string      `json:"currency"`
	IdempotencyKey  pgtype.Text `json:"idempotency_key"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerEmail,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.ShippingAddress,
		arg.BillingAddress,
		arg.ShippingMethod,
		arg.SubtotalPence,
		arg.ShippingPence,
		arg.TaxPence,
		arg.TotalPence,
		arg.Currency,
		arg.IdempotencyKey,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, product_variant_id, product_name, variant_sku, variant_label, quantity, price_at_purchase_pence
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, product_variant_id, product_name, variant_sku, variant_label, quantity, price_at_purchase_pence
`

type CreateOrderItemParams struct {
	OrderID              pgtype.UUID `json:"order_id"`
	ProductVariantID     pgtype.UUID `json:"product_variant_id"`
	ProductName          string      `json:"product_name"`
	VariantSku           string      `json:"variant_sku"`
	VariantLabel         string      `json:"variant_label"`
	Quantity             int32       `json:"quantity"`
	PriceAtPurchasePence int64       `json:"price_at_purchase_pence"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductVariantID,
		arg.ProductName,
		arg.VariantSku,
		arg.VariantLabel,
		arg.Quantity,
		arg.PriceAtPurchasePence,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductVariantID,
		&i.ProductName,
		&i.VariantSku,
		&i.VariantLabel,
		&i.Quantity,
		&i.PriceAtPurchasePence,
	)
	return i, err
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, product_variant_id, product_name, variant_sku, variant_label, quantity, price_at_purchase_pence
FROM order_items
WHERE order_id = $1
ORDER BY variant_sku, id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductVariantID,
			&i.ProductName,
			&i.VariantSku,
			&i.VariantLabel,
			&i.Quantity,
			&i.PriceAtPurchasePence,
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

const setOrderStripeSession = `-- name: SetOrderStripeSession :exec
UPDATE orders
SET stripe_session_id = $2, stripe_session_url = $3, updated_at = now()
WHERE id = $1
`

type SetOrderStripeSessionParams struct {
	ID               pgtype.UUID `json:"id"`
	StripeSessionID  pgtype.Text `json:"stripe_session_id"`
	StripeSessionUrl string      `json:"stripe_session_url"`
}

func (q *Queries) SetOrderStripeSession(ctx context.Context, arg SetOrderStripeSessionParams) error {
	_, err := q.db.Exec(ctx, setOrderStripeSession, arg.ID, arg.StripeSessionID, arg.StripeSessionUrl)
	return err
}

const getOrderByIdempotencyKey = `-- name: GetOrderByIdempotencyKey :one
SELECT ` + orderColumns + `
FROM orders
WHERE idempotency_key = $1
`

func (q *Queries) GetOrderByIdempotencyKey(ctx context.Context, idempotencyKey string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByIdempotencyKey, idempotencyKey))
}

const releaseOrderIdempotencyKey = `-- name: ReleaseOrderIdempotencyKey :exec
UPDATE orders
SET idempotency_key = NULL, updated_at = now()
WHERE id = $1
`

func (q *Queries) ReleaseOrderIdempotencyKey(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, releaseOrderIdempotencyKey, id)
	return err
}

const getOrderByNumber = `-- name: GetOrderByNumber :one
SELECT ` + orderColumns + `
FROM orders
WHERE order_number = $1
`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const lockOrderByNumber = `-- name: LockOrderByNumber :one
SELECT ` + orderColumns + `
FROM orders
WHERE order_number = $1
FOR UPDATE
`

func (q *Queries) LockOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, lockOrderByNumber, orderNumber))
}

const markOrderPaid = `-- name: MarkOrderPaid :one
UPDATE orders
SET status = 'processing',
    payment_status = 'paid',
    stripe_payment_intent_id = COALESCE($2, stripe_payment_intent_id),
    stripe_session_id = COALESCE(stripe_session_id, $3),
    customer_email = CASE WHEN customer_email = '' THEN COALESCE($4, '') ELSE customer_email END,
    paid_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type MarkOrderPaidParams struct {
	ID                    pgtype.UUID `json:"id"`
	StripePaymentIntentID pgtype.Text `json:"stripe_payment_intent_id"`
	StripeSessionID       pgtype.Text `json:"stripe_session_id"`
	CustomerEmail         pgtype.Text `json:"customer_email"`
}

func (q *Queries) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderPaid,
		arg.ID,
		arg.StripePaymentIntentID,
		arg.StripeSessionID,
		arg.CustomerEmail,
	))
}

const cancelOrder = `-- name: CancelOrder :one
UPDATE orders
SET status = 'cancelled',
    payment_status = $2,
    cancelled_at = now(),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID            pgtype.UUID `json:"id"`
	PaymentStatus string      `json:"payment_status"`
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.PaymentStatus))
}
