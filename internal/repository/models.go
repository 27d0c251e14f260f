package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Category struct {
	ID          pgtype.UUID        `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	SortOrder   int32              `json:"sort_order"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
}

type Product struct {
	ID          pgtype.UUID        `json:"id"`
	CategoryID  pgtype.UUID        `json:"category_id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	PricePence  int64              `json:"price_pence"`
	ImageUrl    string             `json:"image_url"`
	IsActive    bool               `json:"is_active"`
	IsFeatured  bool               `json:"is_featured"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type ProductVariant struct {
	ID                 pgtype.UUID        `json:"id"`
	ProductID          pgtype.UUID        `json:"product_id"`
	Size               string             `json:"size"`
	Color              string             `json:"color"`
	Sku                string             `json:"sku"`
	StockQuantity      int32              `json:"stock_quantity"`
	PriceOverridePence pgtype.Int8        `json:"price_override_pence"`
	IsActive           bool               `json:"is_active"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type Order struct {
	ID                    pgtype.UUID        `json:"id"`
	OrderNumber           string             `json:"order_number"`
	CustomerEmail         string             `json:"customer_email"`
	CustomerName          string             `json:"customer_name"`
	CustomerPhone         string             `json:"customer_phone"`
	ShippingAddress       []byte             `json:"shipping_address"`
	BillingAddress        []byte             `json:"billing_address"`
	ShippingMethod        string             `json:"shipping_method"`
	SubtotalPence         int64              `json:"subtotal_pence"`
	ShippingPence         int64              `json:"shipping_pence"`
	TaxPence              int64              `json:"tax_pence"`
	TotalPence            int64              `json:"total_pence"`
	Currency              string             `json:"currency"`
	Status                string             `json:"status"`
	PaymentStatus         string             `json:"payment_status"`
	FulfillmentStatus     string             `json:"fulfillment_status"`
	StripeSessionID       pgtype.Text        `json:"stripe_session_id"`
	StripePaymentIntentID pgtype.Text        `json:"stripe_payment_intent_id"`
	StripeSessionUrl      string             `json:"stripe_session_url"`
	IdempotencyKey        pgtype.Text        `json:"idempotency_key"`
	PaidAt                pgtype.Timestamptz `json:"paid_at"`
	CancelledAt           pgtype.Timestamptz `json:"cancelled_at"`
	CreatedAt             pgtype.Timestamptz `json:"created_at"`
	UpdatedAt             pgtype.Timestamptz `json:"updated_at"`
}

type OrderItem struct {
	ID                   pgtype.UUID `json:"id"`
	OrderID              pgtype.UUID `json:"order_id"`
	ProductVariantID     pgtype.UUID `json:"product_variant_id"`
	ProductName          string      `json:"product_name"`
	VariantSku           string      `json:"variant_sku"`
	VariantLabel         string      `json:"variant_label"`
	Quantity             int32       `json:"quantity"`
	PriceAtPurchasePence int64       `json:"price_at_purchase_pence"`
}

type InventoryMovement struct {
	ID               pgtype.UUID        `json:"id"`
	ProductVariantID pgtype.UUID        `json:"product_variant_id"`
	MovementType     string             `json:"movement_type"`
	QuantityChange   int32              `json:"quantity_change"`
	PreviousQuantity int32              `json:"previous_quantity"`
	NewQuantity      int32              `json:"new_quantity"`
	Reference        pgtype.Text        `json:"reference"`
	Notes            string             `json:"notes"`
	CreatedAt        pgtype.Timestamptz `json:"created_at"`
}

type ProcessedWebhookEvent struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	ProcessedAt pgtype.Timestamptz `json:"processed_at"`
}

type WebhookError struct {
	ID           pgtype.UUID        `json:"id"`
	EventID      string             `json:"event_id"`
	EventType    string             `json:"event_type"`
	ErrorMessage string             `json:"error_message"`
	Payload      []byte             `json:"payload"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
}
