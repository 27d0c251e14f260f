package postgres

import (
	"encoding/json"
	"time"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// UUID converts a pgtype.UUID to a uuid.UUID. Invalid (NULL) values become
// uuid.Nil.
func UUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}

// PgUUID converts a uuid.UUID to a pgtype.UUID.
func PgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// PgText returns a NULL pgtype.Text for the empty string.
func PgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func CategoryFromRow(row repository.Category) domain.Category {
	return domain.Category{
		ID:          UUID(row.ID),
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		SortOrder:   int(row.SortOrder),
	}
}

func ProductFromRow(row repository.Product) domain.Product {
	p := domain.Product{
		ID:          UUID(row.ID),
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Description,
		Price:       domain.Money(row.PricePence),
		ImageURL:    row.ImageUrl,
		IsActive:    row.IsActive,
		IsFeatured:  row.IsFeatured,
		CreatedAt:   row.CreatedAt.Time,
	}
	if row.CategoryID.Valid {
		id := UUID(row.CategoryID)
		p.CategoryID = &id
	}
	return p
}

func VariantFromRow(row repository.ProductVariant) domain.Variant {
	return domain.Variant{
		ID:            UUID(row.ID),
		ProductID:     UUID(row.ProductID),
		Size:          row.Size,
		Color:         row.Color,
		SKU:           row.Sku,
		StockQuantity: int(row.StockQuantity),
		PriceOverride: moneyPtr(row.PriceOverridePence),
		IsActive:      row.IsActive,
	}
}

// PurchasableFromRow maps the variant/product join used at checkout.
func PurchasableFromRow(row repository.GetVariantWithProductRow) domain.PurchasableVariant {
	return domain.PurchasableVariant{
		Variant: domain.Variant{
			ID:            UUID(row.ID),
			ProductID:     UUID(row.ProductID),
			Size:          row.Size,
			Color:         row.Color,
			SKU:           row.Sku,
			StockQuantity: int(row.StockQuantity),
			PriceOverride: moneyPtr(row.PriceOverridePence),
			IsActive:      row.IsActive,
		},
		ProductName:     row.ProductName,
		ProductSlug:     row.ProductSlug,
		ProductPrice:    domain.Money(row.ProductPricePence),
		ProductIsActive: row.ProductIsActive,
		ImageURL:        row.ImageUrl,
	}
}

func moneyPtr(v pgtype.Int8) *domain.Money {
	if !v.Valid {
		return nil
	}
	m := domain.Money(v.Int64)
	return &m
}

// OrderFromRow maps an order row. Address JSON that fails to decode is left
// zero rather than failing the read; it was validated on the way in.
func OrderFromRow(row repository.Order) domain.Order {
	o := domain.Order{
		ID:             UUID(row.ID),
		OrderNumber:    row.OrderNumber,
		CustomerEmail:  row.CustomerEmail,
		CustomerName:   row.CustomerName,
		CustomerPhone:  row.CustomerPhone,
		ShippingMethod: row.ShippingMethod,
		Totals: domain.Totals{
			Subtotal: domain.Money(row.SubtotalPence),
			Shipping: domain.Money(row.ShippingPence),
			VAT:      domain.Money(row.TaxPence),
			Total:    domain.Money(row.TotalPence),
		},
		Currency:              row.Currency,
		Status:                domain.OrderStatus(row.Status),
		PaymentStatus:         domain.PaymentStatus(row.PaymentStatus),
		FulfillmentStatus:     domain.FulfillmentStatus(row.FulfillmentStatus),
		StripeSessionID:       row.StripeSessionID.String,
		StripePaymentIntentID: row.StripePaymentIntentID.String,
		PaidAt:                timePtr(row.PaidAt),
		CancelledAt:           timePtr(row.CancelledAt),
		CreatedAt:             row.CreatedAt.Time,
	}
	_ = json.Unmarshal(row.ShippingAddress, &o.ShippingAddress)
	_ = json.Unmarshal(row.BillingAddress, &o.BillingAddress)
	return o
}

func OrderItemFromRow(row repository.OrderItem) domain.OrderItem {
	return domain.OrderItem{
		ID:              UUID(row.ID),
		OrderID:         UUID(row.OrderID),
		VariantID:       UUID(row.ProductVariantID),
		ProductName:     row.ProductName,
		SKU:             row.VariantSku,
		VariantLabel:    row.VariantLabel,
		Quantity:        int(row.Quantity),
		PriceAtPurchase: domain.Money(row.PriceAtPurchasePence),
	}
}

func OrderItemsFromRows(rows []repository.OrderItem) []domain.OrderItem {
	items := make([]domain.OrderItem, len(rows))
	for i, row := range rows {
		items[i] = OrderItemFromRow(row)
	}
	return items
}

func MovementFromRow(row repository.InventoryMovement) domain.InventoryMovement {
	return domain.InventoryMovement{
		ID:               UUID(row.ID),
		VariantID:        UUID(row.ProductVariantID),
		MovementType:     domain.MovementType(row.MovementType),
		QuantityChange:   int(row.QuantityChange),
		PreviousQuantity: int(row.PreviousQuantity),
		NewQuantity:      int(row.NewQuantity),
		Reference:        row.Reference.String,
		Notes:            row.Notes,
		CreatedAt:        row.CreatedAt.Time,
	}
}

func StockLevelFromRow(row repository.ListStockLevelsRow) domain.StockLevel {
	return domain.StockLevel{
		VariantID:     UUID(row.ID),
		ProductID:     UUID(row.ProductID),
		ProductName:   row.ProductName,
		SKU:           row.Sku,
		Size:          row.Size,
		Color:         row.Color,
		StockQuantity: int(row.StockQuantity),
		IsActive:      row.IsActive,
	}
}
