package postgres

import (
	"testing"
	"time"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestUUIDConversion(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, UUID(PgUUID(id)))
	assert.Equal(t, uuid.Nil, UUID(pgtype.UUID{}))
}

func TestPgText(t *testing.T) {
	assert.False(t, PgText("").Valid)
	assert.Equal(t, pgtype.Text{String: "pi_1", Valid: true}, PgText("pi_1"))
}

func TestOrderFromRow_Timestamps(t *testing.T) {
	paid := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	row := repository.Order{
		OrderNumber:     "QM-1",
		ShippingAddress: []byte(`not json`),
		PaidAt:          pgtype.Timestamptz{Time: paid, Valid: true},
		PaymentStatus:   "paid",
	}

	got := OrderFromRow(row)
	assert.True(t, got.ShippingAddress.IsZero(), "bad address JSON leaves the address zero")
	if assert.NotNil(t, got.PaidAt) {
		assert.Equal(t, paid, *got.PaidAt)
	}
	assert.Nil(t, got.CancelledAt)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
}

func TestPurchasableFromRow(t *testing.T) {
	row := repository.GetVariantWithProductRow{
		Sku:                "FJ-M-OLV",
		Size:               "M",
		Color:              "Olive",
		StockQuantity:      4,
		PriceOverridePence: pgtype.Int8{Int64: 2799, Valid: true},
		IsActive:           true,
		ProductName:        "Field Jacket",
		ProductPricePence:  2599,
		ProductIsActive:    true,
	}

	got := PurchasableFromRow(row)
	assert.True(t, got.Purchasable())
	assert.Equal(t, domain.Money(2799), got.UnitPrice())
	assert.Equal(t, "Field Jacket - M / Olive", got.DisplayName())
}
