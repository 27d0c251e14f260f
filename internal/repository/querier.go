package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	// Catalog
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id pgtype.UUID) (Category, error)
	ListActiveProducts(ctx context.Context, arg ListActiveProductsParams) ([]Product, error)
	GetActiveProductBySlug(ctx context.Context, slug string) (Product, error)
	ListActiveVariantsByProduct(ctx context.Context, productID pgtype.UUID) ([]ProductVariant, error)
	GetVariantWithProduct(ctx context.Context, id pgtype.UUID) (GetVariantWithProductRow, error)

	// Inventory
	LockVariantForUpdate(ctx context.Context, id pgtype.UUID) (ProductVariant, error)
	UpdateVariantStock(ctx context.Context, arg UpdateVariantStockParams) (ProductVariant, error)
	ListStockLevels(ctx context.Context, arg ListStockLevelsParams) ([]ListStockLevelsRow, error)
	CreateInventoryMovement(ctx context.Context, arg CreateInventoryMovementParams) (InventoryMovement, error)
	ListInventoryMovements(ctx context.Context, arg ListInventoryMovementsParams) ([]InventoryMovement, error)

	// Orders
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error)
	SetOrderStripeSession(ctx context.Context, arg SetOrderStripeSessionParams) error
	GetOrderByIdempotencyKey(ctx context.Context, idempotencyKey string) (Order, error)
	ReleaseOrderIdempotencyKey(ctx context.Context, id pgtype.UUID) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error)
	LockOrderByNumber(ctx context.Context, orderNumber string) (Order, error)
	MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error)
	CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error)

	// Webhooks
	ClaimWebhookEvent(ctx context.Context, arg ClaimWebhookEventParams) (int64, error)
	CreateWebhookError(ctx context.Context, arg CreateWebhookErrorParams) error
}

var _ Querier = (*Queries)(nil)
