package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dukerupert/quartermaster/internal/billing"
	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/shipping"
	"github.com/dukerupert/quartermaster/internal/tax"
	"github.com/dukerupert/quartermaster/internal/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// CheckoutFlow identifies which checkout route created a session.
type CheckoutFlow string

const (
	FlowSimple   CheckoutFlow = "simple"
	FlowEnhanced CheckoutFlow = "enhanced"
)

// maxOrderNumberAttempts bounds retries on an order number collision.
const maxOrderNumberAttempts = 3

// cancelTimeout bounds the cleanup of an order whose session failed.
const cancelTimeout = 5 * time.Second

const idempotencyKeyConstraint = "orders_idempotency_key_key"

// CheckoutService turns a cart into a pending order and a hosted checkout
// session.
type CheckoutService interface {
	// CreateSession validates the cart against live stock and prices,
	// persists a pending order and creates the payment session for it.
	// Nothing is sent to the payment processor if any item is rejected.
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// CheckoutRequest is a cart submitted for payment.
type CheckoutRequest struct {
	Flow            CheckoutFlow
	Items           []CartItem
	ShippingAddress domain.Address
	// BillingAddress defaults to ShippingAddress when zero.
	BillingAddress domain.Address
	Customer       Customer
	// ShippingMethod is "standard" or "express". Only the enhanced flow
	// honours it.
	ShippingMethod string
	// IdempotencyKey makes retries of the same checkout return the session
	// created by the first attempt.
	IdempotencyKey string
}

// CartItem is a variant and the quantity requested.
type CartItem struct {
	VariantID uuid.UUID
	Quantity  int
}

// Customer holds contact details collected by the enhanced flow.
type Customer struct {
	Email string
	Name  string
	Phone string
}

// CheckoutResult is returned to the storefront to redirect the shopper.
type CheckoutResult struct {
	SessionID      string
	URL            string
	OrderNumber    string
	ShippingMethod string
	Totals         domain.Totals
}

// CheckoutConfig holds the settings the checkout service needs.
type CheckoutConfig struct {
	BaseURL           string
	Currency          string
	OrderNumberPrefix string
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	store            repository.Store
	billingProvider  billing.Provider
	shippingProvider shipping.Provider
	taxCalculator    tax.Calculator
	numbers          *orderNumbers
	config           CheckoutConfig
	logger           *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(
	store repository.Store,
	billingProvider billing.Provider,
	shippingProvider shipping.Provider,
	taxCalculator tax.Calculator,
	cfg CheckoutConfig,
	logger *slog.Logger,
) CheckoutService {
	if cfg.Currency == "" {
		cfg.Currency = "gbp"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &checkoutService{
		store:            store,
		billingProvider:  billingProvider,
		shippingProvider: shippingProvider,
		taxCalculator:    taxCalculator,
		numbers:          newOrderNumbers(cfg.OrderNumberPrefix),
		config:           cfg,
		logger:           logger.With("service", "checkout"),
	}
}

// pricedLine is a cart item resolved against the catalog.
type pricedLine struct {
	variant  domain.PurchasableVariant
	quantity int
}

func (s *checkoutService) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	const op = "checkout.create"

	if req.Flow == "" {
		req.Flow = FlowSimple
	}
	if telemetry.Business != nil {
		telemetry.Business.CheckoutStarted.WithLabelValues(string(req.Flow)).Inc()
	}

	result, err := s.createSession(ctx, op, req)
	if err != nil {
		if telemetry.Business != nil {
			telemetry.Business.CheckoutFailed.WithLabelValues(string(req.Flow), domain.ErrorCode(err)).Inc()
		}
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.CheckoutCreated.WithLabelValues(string(req.Flow), result.ShippingMethod).Inc()
	}
	return result, nil
}

func (s *checkoutService) createSession(ctx context.Context, op string, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateCheckoutRequest(op, &req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		replayed, err := s.replaySession(ctx, op, req.IdempotencyKey)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	lines, err := s.resolveItems(ctx, op, mergeCartItems(req.Items))
	if err != nil {
		return nil, err
	}

	amounts := make([]LineAmount, len(lines))
	for i, l := range lines {
		amounts[i] = LineAmount{
			Description: l.variant.DisplayName(),
			UnitPence:   l.variant.UnitPrice().Pence(),
			Quantity:    int64(l.quantity),
		}
	}

	rate, err := s.selectShipping(ctx, op, req, Subtotal(amounts))
	if err != nil {
		return nil, err
	}

	totals, err := CalculateTotals(ctx, s.taxCalculator, amounts, FixedShipping(rate.CostPence))
	if err != nil {
		return nil, err
	}

	order, err := s.persistOrder(ctx, op, req, rate, lines, totals)
	if err != nil {
		return nil, err
	}

	log := s.logger.With("order_number", order.OrderNumber, "flow", req.Flow)

	session, err := s.openSession(ctx, req, order, rate, lines, totals)
	if err != nil {
		log.ErrorContext(ctx, "checkout session creation failed", "error", err)

		// The request context may be the reason the processor call failed.
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		_, cancelErr := s.store.CancelOrder(cancelCtx, repository.CancelOrderParams{
			ID:            order.ID,
			PaymentStatus: string(domain.PaymentStatusUnpaid),
		})
		cancel()
		if cancelErr != nil {
			log.ErrorContext(ctx, "failed to cancel order after processor error", "error", cancelErr)
		} else if telemetry.Business != nil {
			telemetry.Business.OrdersCancelled.WithLabelValues("checkout_failed").Inc()
		}

		return nil, domain.Upstream(err, op, "Failed to create checkout session")
	}

	// The webhook finds the order by number, so a failure here only loses
	// the session id lookup.
	if err := s.store.SetOrderStripeSession(ctx, repository.SetOrderStripeSessionParams{
		ID:               order.ID,
		StripeSessionID:  postgres.PgText(session.ID),
		StripeSessionUrl: session.URL,
	}); err != nil {
		log.ErrorContext(ctx, "failed to store checkout session id", "session_id", session.ID, "error", err)
	}

	log.InfoContext(ctx, "checkout session created",
		"session_id", session.ID,
		"total", totals.Total.String(),
	)

	return &CheckoutResult{
		SessionID:      session.ID,
		URL:            session.URL,
		OrderNumber:    order.OrderNumber,
		ShippingMethod: rate.ServiceCode,
		Totals:         totals.Totals,
	}, nil
}

func validateCheckoutRequest(op string, req *CheckoutRequest) error {
	if len(req.Items) == 0 {
		return domain.ErrEmptyCart
	}

	var verr error
	for i, item := range req.Items {
		if item.VariantID == uuid.Nil {
			verr = domain.AddFieldError(verr, fmt.Sprintf("items[%d].variantId", i), "must be a valid UUID")
		}
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			verr = domain.AddFieldError(verr, fmt.Sprintf("items[%d].quantity", i), ErrInvalidQuantity.Error())
		}
	}
	if verr == nil {
		verr = validateMergedQuantities(req.Items)
	}
	if verr != nil {
		verr.(*domain.ValidationError).Op = op
		return verr
	}

	if req.ShippingAddress.IsZero() {
		return ErrMissingAddress
	}
	if req.BillingAddress.IsZero() {
		req.BillingAddress = req.ShippingAddress
	}

	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	if req.Flow == FlowEnhanced && req.Customer.Email == "" {
		return ErrMissingEmail
	}
	if req.Flow != FlowEnhanced {
		req.ShippingMethod = shipping.MethodStandard
	}
	if req.Customer.Name == "" {
		req.Customer.Name = req.ShippingAddress.FullName
	}
	if req.Customer.Phone == "" {
		req.Customer.Phone = req.ShippingAddress.Phone
	}

	return nil
}

// validateMergedQuantities applies the per-line cap to the total of each
// variant, reported against the first line that names it.
func validateMergedQuantities(items []CartItem) error {
	first := make(map[uuid.UUID]int, len(items))
	totals := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if _, ok := first[item.VariantID]; !ok {
			first[item.VariantID] = i
		}
		totals[item.VariantID] += item.Quantity
	}

	var verr error
	for _, item := range mergeCartItems(items) {
		if totals[item.VariantID] > MaxItemQuantity {
			verr = domain.AddFieldError(verr, fmt.Sprintf("items[%d].quantity", first[item.VariantID]), ErrInvalidQuantity.Error())
		}
	}
	return verr
}

// mergeCartItems sums quantities of repeated variants, keeping first-seen
// order.
func mergeCartItems(items []CartItem) []CartItem {
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]CartItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.VariantID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.VariantID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// resolveItems loads live variant data and checks stock. The check is
// advisory; the binding deduction happens when payment completes.
func (s *checkoutService) resolveItems(ctx context.Context, op string, items []CartItem) ([]pricedLine, error) {
	lines := make([]pricedLine, 0, len(items))
	for _, item := range items {
		row, err := s.store.GetVariantWithProduct(ctx, postgres.PgUUID(item.VariantID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.NotFound(op, "Product variant", item.VariantID.String())
			}
			return nil, domain.Internal(err, op, "failed to load product variant")
		}

		variant := postgres.PurchasableFromRow(row)
		if !variant.Purchasable() {
			return nil, domain.NotFound(op, "Product variant", item.VariantID.String())
		}
		if variant.StockQuantity < item.Quantity {
			return nil, domain.Errorf(domain.EINVALID, op, "Insufficient stock for %s", variant.SKU)
		}

		lines = append(lines, pricedLine{variant: variant, quantity: item.Quantity})
	}
	return lines, nil
}

func (s *checkoutService) selectShipping(ctx context.Context, op string, req CheckoutRequest, subtotal int64) (shipping.Rate, error) {
	rates, err := s.shippingProvider.GetRates(ctx, shipping.RateParams{
		SubtotalPence: subtotal,
		Country:       req.ShippingAddress.Country,
	})
	if err != nil {
		if errors.Is(err, shipping.ErrNoRates) {
			return shipping.Rate{}, domain.Internal(err, op, "no shipping rates available")
		}
		return shipping.Rate{}, err
	}

	rate, err := shipping.SelectRate(rates, req.ShippingMethod)
	if err != nil {
		if errors.Is(err, shipping.ErrUnknownRate) {
			return shipping.Rate{}, domain.ErrUnknownShippingRate
		}
		return shipping.Rate{}, domain.Internal(err, op, "no shipping rates available")
	}
	return rate, nil
}

// persistOrder writes the pending order and its items in one transaction.
// A collision on the order number is retried with a fresh number.
func (s *checkoutService) persistOrder(
	ctx context.Context,
	op string,
	req CheckoutRequest,
	rate shipping.Rate,
	lines []pricedLine,
	totals *OrderTotals,
) (repository.Order, error) {
	shippingJSON, err := json.Marshal(req.ShippingAddress)
	if err != nil {
		return repository.Order{}, domain.Internal(err, op, "failed to encode shipping address")
	}
	billingJSON, err := json.Marshal(req.BillingAddress)
	if err != nil {
		return repository.Order{}, domain.Internal(err, op, "failed to encode billing address")
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := s.numbers.Next()
		if err != nil {
			return repository.Order{}, domain.Internal(err, op, "failed to generate order number")
		}

		var order repository.Order
		err = s.store.ExecTx(ctx, func(q repository.Querier) error {
			var err error
			order, err = q.CreateOrder(ctx, repository.CreateOrderParams{
				OrderNumber:     number,
				CustomerEmail:   req.Customer.Email,
				CustomerName:    req.Customer.Name,
				CustomerPhone:   req.Customer.Phone,
				ShippingAddress: shippingJSON,
				BillingAddress:  billingJSON,
				ShippingMethod:  rate.ServiceCode,
				SubtotalPence:   totals.Subtotal.Pence(),
				ShippingPence:   totals.Shipping.Pence(),
				TaxPence:        totals.VAT.Pence(),
				TotalPence:      totals.Total.Pence(),
				Currency:        s.config.Currency,
				IdempotencyKey:  pgtype.Text{String: req.IdempotencyKey, Valid: req.IdempotencyKey != ""},
			})
			if err != nil {
				return err
			}

			for _, l := range lines {
				if _, err := q.CreateOrderItem(ctx, repository.CreateOrderItemParams{
					OrderID:              order.ID,
					ProductVariantID:     postgres.PgUUID(l.variant.ID),
					ProductName:          l.variant.ProductName,
					VariantSku:           l.variant.SKU,
					VariantLabel:         l.variant.Label(),
					Quantity:             int32(l.quantity),
					PriceAtPurchasePence: l.variant.UnitPrice().Pence(),
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return order, nil
		}
		constraint, unique := uniqueViolation(err)
		if !unique {
			return repository.Order{}, domain.Internal(err, op, "failed to create order")
		}
		if constraint == idempotencyKeyConstraint {
			return repository.Order{}, ErrCheckoutInProgress
		}

		s.logger.WarnContext(ctx, "order number collision, retrying", "order_number", number, "attempt", attempt)
	}

	return repository.Order{}, ErrOrderNumberConflict
}

// uniqueViolation reports whether err is a unique violation and on which
// constraint.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// replaySession returns the result of an earlier checkout made with the same
// idempotency key. A nil result means the key is free to use. A key whose
// order was cancelled before a session existed is released for reuse.
func (s *checkoutService) replaySession(ctx context.Context, op, key string) (*CheckoutResult, error) {
	order, err := s.store.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "failed to look up idempotency key")
	}

	log := s.logger.With("order_number", order.OrderNumber)

	if order.StripeSessionID.Valid {
		log.InfoContext(ctx, "checkout replayed from idempotency key", "session_id", order.StripeSessionID.String)
		o := postgres.OrderFromRow(order)
		return &CheckoutResult{
			SessionID:      order.StripeSessionID.String,
			URL:            order.StripeSessionUrl,
			OrderNumber:    order.OrderNumber,
			ShippingMethod: order.ShippingMethod,
			Totals:         o.Totals,
		}, nil
	}

	if domain.OrderStatus(order.Status) != domain.OrderStatusCancelled {
		return nil, ErrCheckoutInProgress
	}

	if err := s.store.ReleaseOrderIdempotencyKey(ctx, order.ID); err != nil {
		return nil, domain.Internal(err, op, "failed to release idempotency key")
	}
	log.InfoContext(ctx, "idempotency key released from failed checkout")
	return nil, nil
}

// sessionIdempotencyKey is unique per order, so a processor retry for the
// same order can never collide with a different order's parameters.
func sessionIdempotencyKey(orderID string) string {
	return "checkout-session-" + orderID
}

func (s *checkoutService) openSession(
	ctx context.Context,
	req CheckoutRequest,
	order repository.Order,
	rate shipping.Rate,
	lines []pricedLine,
	totals *OrderTotals,
) (*billing.CheckoutSession, error) {
	items := make([]billing.CheckoutLineItem, 0, len(lines)+1)
	for _, l := range lines {
		items = append(items, billing.CheckoutLineItem{
			Name:            l.variant.DisplayName(),
			ImageURL:        l.variant.ImageURL,
			UnitAmountPence: l.variant.UnitPrice().Pence(),
			Quantity:        int64(l.quantity),
		})
	}

	// Prices are VAT-exclusive, so VAT is charged as its own line.
	if totals.VAT > 0 {
		items = append(items, billing.CheckoutLineItem{
			Name:            vatLabel(totals.TaxBreakdown),
			UnitAmountPence: totals.VAT.Pence(),
			Quantity:        1,
		})
	}

	orderID := postgres.UUID(order.ID).String()
	params := billing.CreateCheckoutSessionParams{
		Currency:  s.config.Currency,
		LineItems: items,
		Shipping: &billing.CheckoutShipping{
			RateID:      rate.ProviderRateID,
			DisplayName: rate.ServiceName,
			AmountPence: rate.CostPence,
			DaysMin:     rate.DaysMin,
			DaysMax:     rate.DaysMax,
		},
		CustomerEmail:     req.Customer.Email,
		ClientReferenceID: order.OrderNumber,
		SuccessURL:        s.successURL(order.OrderNumber),
		CancelURL:         s.cancelURL(order.OrderNumber),
		Metadata: map[string]string{
			billing.MetadataOrderNumber: order.OrderNumber,
			billing.MetadataOrderID:     orderID,
		},
		IdempotencyKey: sessionIdempotencyKey(orderID),
	}

	start := time.Now()
	session, err := s.billingProvider.CreateCheckoutSession(ctx, params)
	if telemetry.Business != nil {
		telemetry.Business.StripeAPILatency.WithLabelValues("checkout_session_create").Observe(time.Since(start).Seconds())
	}
	return session, err
}

// successURL keeps the {CHECKOUT_SESSION_ID} template unescaped so the
// processor can substitute it.
func (s *checkoutService) successURL(orderNumber string) string {
	return fmt.Sprintf("%s/checkout/success?session_id={CHECKOUT_SESSION_ID}&order=%s",
		s.config.BaseURL, url.QueryEscape(orderNumber))
}

func (s *checkoutService) cancelURL(orderNumber string) string {
	return fmt.Sprintf("%s/cart?cancelled=1&order=%s", s.config.BaseURL, url.QueryEscape(orderNumber))
}

func vatLabel(breakdown []tax.TaxBreakdown) string {
	if len(breakdown) == 0 {
		return "VAT"
	}
	b := breakdown[0]
	return fmt.Sprintf("%s (%s%%)", b.Name, b.Rate.Shift(2).String())
}
