package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func variantID(v repository.ProductVariant) uuid.UUID {
	return postgres.UUID(v.ID)
}

func TestCheckout_CreateSession_Simple(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
	variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Flow:            FlowSimple,
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 2}},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Totals{Subtotal: 5198, Shipping: 0, VAT: 1040, Total: 6238}, result.Totals)
	assert.Regexp(t, `^QM-\d{6}-[A-HJ-NP-Z2-9]{6}$`, result.OrderNumber)
	assert.Equal(t, "standard", result.ShippingMethod)
	assert.NotEmpty(t, result.URL)

	t.Run("pending order persisted", func(t *testing.T) {
		order, ok := f.store.OrderByNumber(result.OrderNumber)
		require.True(t, ok)
		assert.Equal(t, "pending", order.Status)
		assert.Equal(t, "unpaid", order.PaymentStatus)
		assert.Equal(t, int64(6238), order.TotalPence)
		assert.Equal(t, result.SessionID, order.StripeSessionID.String)
		assert.Equal(t, "Tommy Atkins", order.CustomerName)

		var billingAddr domain.Address
		require.NoError(t, json.Unmarshal(order.BillingAddress, &billingAddr))
		assert.Equal(t, testAddress(), billingAddr, "billing defaults to shipping")

		items, err := f.store.ListOrderItems(context.Background(), order.ID)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, int64(2599), items[0].PriceAtPurchasePence)
		assert.Equal(t, int32(2), items[0].Quantity)
		assert.Equal(t, "M / Olive", items[0].VariantLabel)
	})

	t.Run("session params", func(t *testing.T) {
		require.Len(t, f.billing.Sessions, 1)
		params := f.billing.Sessions[0]

		require.Len(t, params.LineItems, 2)
		assert.Equal(t, "Field Jacket - M / Olive", params.LineItems[0].Name)
		assert.Equal(t, int64(2599), params.LineItems[0].UnitAmountPence)
		assert.Equal(t, int64(2), params.LineItems[0].Quantity)
		assert.Equal(t, "VAT (20%)", params.LineItems[1].Name)
		assert.Equal(t, int64(1040), params.LineItems[1].UnitAmountPence)

		require.NotNil(t, params.Shipping)
		assert.Equal(t, int64(0), params.Shipping.AmountPence)
		assert.Equal(t, "Free UK delivery", params.Shipping.DisplayName)
		assert.Empty(t, params.Shipping.RateID)

		assert.Equal(t, result.OrderNumber, params.Metadata[billing.MetadataOrderNumber])
		assert.Equal(t, result.OrderNumber, params.ClientReferenceID)
		assert.NotEmpty(t, params.Metadata[billing.MetadataOrderID])
		assert.Equal(t,
			"https://shop.test/checkout/success?session_id={CHECKOUT_SESSION_ID}&order="+result.OrderNumber,
			params.SuccessURL)
		assert.Equal(t, "https://shop.test/cart?cancelled=1&order="+result.OrderNumber, params.CancelURL)
		assert.Equal(t, "gbp", params.Currency)
	})

	t.Run("stock untouched until payment", func(t *testing.T) {
		assert.Equal(t, int32(5), f.store.Stock(variant.ID))
		assert.Empty(t, f.store.Movements)
	})
}

func TestCheckout_CreateSession_FlatShippingUnderThreshold(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Totals{Subtotal: 2099, Shipping: 499, VAT: 520, Total: 3118}, result.Totals)
	assert.Equal(t, int64(499), f.billing.Sessions[0].Shipping.AmountPence)
	assert.Equal(t, "Standard UK delivery", f.billing.Sessions[0].Shipping.DisplayName)
}

func TestCheckout_CreateSession_PriceOverride(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Smock", "smock", 4000)
	variant := f.store.AddVariant(product.ID, "XXL", "DPM", "SM-XXL-DPM", 3)
	variant.PriceOverridePence = pgtype.Int8{Int64: 4500, Valid: true}
	f.store.Variants[variant.ID.Bytes] = variant

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(4500), result.Totals.Subtotal)
}

func TestCheckout_CreateSession_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
	variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 1)

	_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 2}},
		ShippingAddress: testAddress(),
	})
	require.Error(t, err)

	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, "Insufficient stock for FJ-M-OLV", domain.ErrorMessage(err))
	assert.Empty(t, f.billing.Sessions, "no payment session on rejection")
	assert.Empty(t, f.store.Orders)
}

func TestCheckout_CreateSession_MergesDuplicateItems(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 2)

	t.Run("merged within stock", func(t *testing.T) {
		result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
			Items: []CartItem{
				{VariantID: variantID(variant), Quantity: 1},
				{VariantID: variantID(variant), Quantity: 1},
			},
			ShippingAddress: testAddress(),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(4198), result.Totals.Subtotal)
		assert.Len(t, f.billing.Sessions[0].LineItems, 2, "one product line plus VAT")
	})

	t.Run("merged over stock", func(t *testing.T) {
		_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
			Items: []CartItem{
				{VariantID: variantID(variant), Quantity: 2},
				{VariantID: variantID(variant), Quantity: 1},
			},
			ShippingAddress: testAddress(),
		})
		assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	})
}

func TestCheckout_CreateSession_VariantNotFound(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()

	_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: missing, Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, "Product variant not found: "+missing.String(), domain.ErrorMessage(err))
	assert.Empty(t, f.billing.Sessions)
}

func TestCheckout_CreateSession_InactiveProduct(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Retired Cap", "retired-cap", 999)
	product.IsActive = false
	f.store.Products[product.ID.Bytes] = product
	variant := f.store.AddVariant(product.ID, "", "", "RC-1", 10)

	_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestCheckout_CreateSession_Validation(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	tests := []struct {
		name    string
		req     CheckoutRequest
		wantErr error
		field   string
	}{
		{
			name:    "empty cart",
			req:     CheckoutRequest{ShippingAddress: testAddress()},
			wantErr: domain.ErrEmptyCart,
		},
		{
			name:  "zero quantity",
			req:   CheckoutRequest{Items: []CartItem{{VariantID: id, Quantity: 0}}, ShippingAddress: testAddress()},
			field: "items[0].quantity",
		},
		{
			name:  "quantity over cap",
			req:   CheckoutRequest{Items: []CartItem{{VariantID: id, Quantity: 100}}, ShippingAddress: testAddress()},
			field: "items[0].quantity",
		},
		{
			name: "merged lines over cap",
			req: CheckoutRequest{
				Items: []CartItem{
					{VariantID: id, Quantity: 60},
					{VariantID: uuid.New(), Quantity: 1},
					{VariantID: id, Quantity: 60},
				},
				ShippingAddress: testAddress(),
			},
			field: "items[0].quantity",
		},
		{
			name:  "nil variant",
			req:   CheckoutRequest{Items: []CartItem{{Quantity: 1}}, ShippingAddress: testAddress()},
			field: "items[0].variantId",
		},
		{
			name:    "missing address",
			req:     CheckoutRequest{Items: []CartItem{{VariantID: id, Quantity: 1}}},
			wantErr: ErrMissingAddress,
		},
		{
			name: "enhanced needs email",
			req: CheckoutRequest{
				Flow:            FlowEnhanced,
				Items:           []CartItem{{VariantID: id, Quantity: 1}},
				ShippingAddress: testAddress(),
				Customer:        Customer{Email: "  "},
			},
			wantErr: ErrMissingEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkout.CreateSession(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.field != "" {
				assert.Contains(t, domain.GetValidationFields(err), tt.field)
			}
		})
	}
	assert.Empty(t, f.billing.Sessions)
}

func TestCheckout_CreateSession_EnhancedExpress(t *testing.T) {
	f := newFixture(t)
	f.billing.ShippingRates["shr_express"] = &billing.ShippingRate{
		ID:          "shr_express",
		DisplayName: "Express (next day)",
		AmountPence: 995,
		Currency:    "gbp",
		Active:      true,
		DaysMin:     1,
		DaysMax:     1,
	}
	product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
	variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Flow:            FlowEnhanced,
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 2}},
		ShippingAddress: testAddress(),
		Customer:        Customer{Email: "buyer@example.com", Name: "T. Atkins", Phone: "07700900000"},
		ShippingMethod:  "express",
		IdempotencyKey:  "idem-123",
	})
	require.NoError(t, err)

	assert.Equal(t, "express", result.ShippingMethod)
	assert.Equal(t, domain.Money(995), result.Totals.Shipping)
	assert.Equal(t, domain.Money(1239), result.Totals.VAT)
	assert.Equal(t, domain.Money(7432), result.Totals.Total)

	params := f.billing.Sessions[0]
	assert.Equal(t, "shr_express", params.Shipping.RateID)
	assert.Equal(t, "buyer@example.com", params.CustomerEmail)
	assert.Equal(t, "checkout-session-"+params.Metadata[billing.MetadataOrderID], params.IdempotencyKey)

	order, ok := f.store.OrderByNumber(result.OrderNumber)
	require.True(t, ok)
	assert.Equal(t, "idem-123", order.IdempotencyKey.String)
	assert.Equal(t, "express", order.ShippingMethod)
	assert.Equal(t, "T. Atkins", order.CustomerName)
	assert.Equal(t, "07700900000", order.CustomerPhone)
}

func TestCheckout_CreateSession_SimpleIgnoresShippingMethod(t *testing.T) {
	f := newFixture(t)
	f.billing.ShippingRates["shr_express"] = &billing.ShippingRate{ID: "shr_express", AmountPence: 995, Active: true}
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Flow:            FlowSimple,
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
		ShippingMethod:  "express",
	})
	require.NoError(t, err)
	assert.Equal(t, "standard", result.ShippingMethod)
}

func TestCheckout_CreateSession_UnknownShippingMethod(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	// No express rate configured in the mock provider.
	_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Flow:            FlowEnhanced,
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
		Customer:        Customer{Email: "buyer@example.com"},
		ShippingMethod:  "express",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownShippingRate)
	assert.Empty(t, f.store.Orders)
}

func TestCheckout_CreateSession_ProcessorFailure(t *testing.T) {
	f := newFixture(t)
	f.billing.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
		return nil, errors.New("stripe: api_key_expired")
	}
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	require.Error(t, err)

	assert.Equal(t, domain.EUPSTREAM, domain.ErrorCode(err))
	assert.Equal(t, []string{"stripe: api_key_expired"}, domain.ErrorDetails(err))

	require.Len(t, f.store.Orders, 1)
	for _, o := range f.store.Orders {
		assert.Equal(t, "cancelled", o.Status)
		assert.Equal(t, "unpaid", o.PaymentStatus)
	}
}

func TestCheckout_CreateSession_ProcessorTimeoutStillCancelsOrder(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.billing.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
		cancel()
		return nil, ctx.Err()
	}
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	_, err := f.checkout.CreateSession(ctx, CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	assert.Equal(t, domain.EUPSTREAM, domain.ErrorCode(err))

	require.Len(t, f.store.Orders, 1)
	for _, o := range f.store.Orders {
		assert.Equal(t, "cancelled", o.Status)
	}
}

func TestCheckout_CreateSession_IdempotencyKey(t *testing.T) {
	request := func(variant repository.ProductVariant, key string) CheckoutRequest {
		return CheckoutRequest{
			Flow:            FlowEnhanced,
			Items:           []CartItem{{VariantID: variantID(variant), Quantity: 2}},
			ShippingAddress: testAddress(),
			Customer:        Customer{Email: "buyer@example.com"},
			IdempotencyKey:  key,
		}
	}

	t.Run("retry returns the first session", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
		variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

		first, err := f.checkout.CreateSession(context.Background(), request(variant, "retry-1"))
		require.NoError(t, err)
		second, err := f.checkout.CreateSession(context.Background(), request(variant, "retry-1"))
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Len(t, f.store.Orders, 1)
		assert.Len(t, f.billing.Sessions, 1)
	})

	t.Run("different keys create different orders", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
		variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

		first, err := f.checkout.CreateSession(context.Background(), request(variant, "cart-a"))
		require.NoError(t, err)
		second, err := f.checkout.CreateSession(context.Background(), request(variant, "cart-b"))
		require.NoError(t, err)

		assert.NotEqual(t, first.OrderNumber, second.OrderNumber)
		require.Len(t, f.billing.Sessions, 2)
		assert.NotEqual(t, f.billing.Sessions[0].IdempotencyKey, f.billing.Sessions[1].IdempotencyKey)
	})

	t.Run("retry after processor failure starts again", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
		variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

		f.billing.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
			return nil, errors.New("stripe: rate_limit")
		}
		_, err := f.checkout.CreateSession(context.Background(), request(variant, "retry-2"))
		assert.Equal(t, domain.EUPSTREAM, domain.ErrorCode(err))

		f.billing.CreateCheckoutSessionFunc = nil
		result, err := f.checkout.CreateSession(context.Background(), request(variant, "retry-2"))
		require.NoError(t, err)

		order, ok := f.store.OrderByNumber(result.OrderNumber)
		require.True(t, ok)
		assert.Equal(t, "pending", order.Status)
		assert.Equal(t, "retry-2", order.IdempotencyKey.String)
		assert.Len(t, f.store.Orders, 2)

		require.Len(t, f.billing.Sessions, 2)
		assert.NotEqual(t, f.billing.Sessions[0].IdempotencyKey, f.billing.Sessions[1].IdempotencyKey)
	})

	t.Run("order without a session is in progress", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
		variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

		_, err := f.store.CreateOrder(context.Background(), repository.CreateOrderParams{
			OrderNumber:    "QM-240309-AAAAAA",
			Currency:       "gbp",
			IdempotencyKey: pgtype.Text{String: "retry-3", Valid: true},
		})
		require.NoError(t, err)

		_, err = f.checkout.CreateSession(context.Background(), request(variant, "retry-3"))
		assert.ErrorIs(t, err, ErrCheckoutInProgress)
		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Empty(t, f.billing.Sessions)
	})

	t.Run("concurrent insert with the same key", func(t *testing.T) {
		f := newFixture(t)
		product := f.store.AddProduct("Field Jacket", "field-jacket", 2599)
		variant := f.store.AddVariant(product.ID, "M", "Olive", "FJ-M-OLV", 5)

		_, err := f.store.CreateOrder(context.Background(), repository.CreateOrderParams{
			OrderNumber:    "QM-240309-AAAAAA",
			Currency:       "gbp",
			IdempotencyKey: pgtype.Text{String: "retry-4", Valid: true},
		})
		require.NoError(t, err)
		// The lookup misses as if the other request had not committed yet.
		f.store.Fail["GetOrderByIdempotencyKey"] = pgx.ErrNoRows

		_, err = f.checkout.CreateSession(context.Background(), request(variant, "retry-4"))
		assert.ErrorIs(t, err, ErrCheckoutInProgress)
		assert.Len(t, f.store.Orders, 1)
		assert.Empty(t, f.billing.Sessions)
	})
}

func TestCheckout_CreateSession_OrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	svc := f.checkout.(*checkoutService)
	svc.numbers = fixedNumbers("QM", 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1)

	_, err := f.store.CreateOrder(context.Background(), repository.CreateOrderParams{
		OrderNumber: "QM-240309-AAAAAA",
		Currency:    "gbp",
	})
	require.NoError(t, err)

	result, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	require.NoError(t, err)
	assert.Equal(t, "QM-240309-BBBBBB", result.OrderNumber)
}

func TestCheckout_CreateSession_RollsBackPartialOrder(t *testing.T) {
	f := newFixture(t)
	f.store.Fail["CreateOrderItem"] = errors.New("connection reset")
	product := f.store.AddProduct("Beret", "beret", 2099)
	variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

	_, err := f.checkout.CreateSession(context.Background(), CheckoutRequest{
		Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
	assert.Empty(t, f.store.Orders)
	assert.Empty(t, f.billing.Sessions)
}

func TestCheckout_CreateSession_ShippingProvider(t *testing.T) {
	tests := []struct {
		name      string
		rates     func(ctx context.Context, params shipping.RateParams) ([]shipping.Rate, error)
		wantCode  string
		wantTotal domain.Money
	}{
		{
			name: "no rates",
			rates: func(ctx context.Context, params shipping.RateParams) ([]shipping.Rate, error) {
				return nil, shipping.ErrNoRates
			},
			wantCode: domain.EINTERNAL,
		},
		{
			name: "quoted rate is charged",
			rates: func(ctx context.Context, params shipping.RateParams) ([]shipping.Rate, error) {
				assert.Equal(t, int64(2099), params.SubtotalPence)
				assert.Equal(t, "GB", params.Country)
				return []shipping.Rate{{ServiceName: "Courier", ServiceCode: shipping.MethodStandard, CostPence: 701}}, nil
			},
			// 20.99 + 7.01 + 5.60 VAT
			wantTotal: 3360,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			provider := shipping.NewMockProvider()
			provider.GetRatesFunc = tt.rates
			svc := NewCheckoutService(f.store, f.billing, provider, ukVAT(t), CheckoutConfig{
				BaseURL:           "https://shop.test",
				OrderNumberPrefix: "QM",
			}, testLogger())

			product := f.store.AddProduct("Beret", "beret", 2099)
			variant := f.store.AddVariant(product.ID, "57", "Black", "BR-57-BLK", 3)

			result, err := svc.CreateSession(context.Background(), CheckoutRequest{
				Items:           []CartItem{{VariantID: variantID(variant), Quantity: 1}},
				ShippingAddress: testAddress(),
			})

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
				assert.Empty(t, f.store.Orders)
				assert.Empty(t, f.billing.Sessions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, result.Totals.Total)
		})
	}
}
