package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// MockStore is an in-memory Store for service and handler tests.
// ExecTx snapshots the data and restores it when fn fails, so rollback
// behaviour matches the SQL store. Transactions are serialised.
type MockStore struct {
	Categories map[[16]byte]Category
	Products   map[[16]byte]Product
	Variants   map[[16]byte]ProductVariant
	Orders     map[[16]byte]Order
	OrderItems []OrderItem
	Movements  []InventoryMovement
	Events     map[string]string
	Errors     []CreateWebhookErrorParams

	// Fail makes the named method return the error, e.g. Fail["CreateOrder"].
	Fail map[string]error

	mu  sync.Mutex
	seq int64
}

func NewMockStore() *MockStore {
	return &MockStore{
		Categories: make(map[[16]byte]Category),
		Products:   make(map[[16]byte]Product),
		Variants:   make(map[[16]byte]ProductVariant),
		Orders:     make(map[[16]byte]Order),
		Events:     make(map[string]string),
		Fail:       make(map[string]error),
	}
}

func newID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

func (m *MockStore) now() pgtype.Timestamptz {
	m.seq++
	return pgtype.Timestamptz{Time: time.Unix(1_700_000_000+m.seq, 0).UTC(), Valid: true}
}

func (m *MockStore) fail(method string) error {
	return m.Fail[method]
}

// AddCategory seeds a category and returns it.
func (m *MockStore) AddCategory(name, slug string, sortOrder int32) Category {
	c := Category{ID: newID(), Name: name, Slug: slug, SortOrder: sortOrder, CreatedAt: m.now()}
	m.Categories[c.ID.Bytes] = c
	return c
}

// AddProduct seeds an active product and returns it.
func (m *MockStore) AddProduct(name, slug string, pricePence int64) Product {
	p := Product{
		ID:         newID(),
		Name:       name,
		Slug:       slug,
		PricePence: pricePence,
		IsActive:   true,
		CreatedAt:  m.now(),
	}
	p.UpdatedAt = p.CreatedAt
	m.Products[p.ID.Bytes] = p
	return p
}

// AddVariant seeds an active variant of product and returns it.
func (m *MockStore) AddVariant(product pgtype.UUID, size, color, sku string, stock int32) ProductVariant {
	v := ProductVariant{
		ID:            newID(),
		ProductID:     product,
		Size:          size,
		Color:         color,
		Sku:           sku,
		StockQuantity: stock,
		IsActive:      true,
		CreatedAt:     m.now(),
	}
	v.UpdatedAt = v.CreatedAt
	m.Variants[v.ID.Bytes] = v
	return v
}

// Stock returns the current stock of a variant.
func (m *MockStore) Stock(id pgtype.UUID) int32 {
	return m.Variants[id.Bytes].StockQuantity
}

// OrderByNumber returns the stored order, if any.
func (m *MockStore) OrderByNumber(number string) (Order, bool) {
	for _, o := range m.Orders {
		if o.OrderNumber == number {
			return o, true
		}
	}
	return Order{}, false
}

// MovementsFor returns the movements recorded for a variant, oldest first.
func (m *MockStore) MovementsFor(id pgtype.UUID) []InventoryMovement {
	var out []InventoryMovement
	for _, mv := range m.Movements {
		if mv.ProductVariantID == id {
			out = append(out, mv)
		}
	}
	return out
}

type mockSnapshot struct {
	variants   map[[16]byte]ProductVariant
	orders     map[[16]byte]Order
	orderItems []OrderItem
	movements  []InventoryMovement
	events     map[string]string
}

func (m *MockStore) ExecTx(ctx context.Context, fn func(Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("ExecTx"); err != nil {
		return err
	}

	snap := mockSnapshot{
		variants:   maps.Clone(m.Variants),
		orders:     maps.Clone(m.Orders),
		orderItems: slices.Clone(m.OrderItems),
		movements:  slices.Clone(m.Movements),
		events:     maps.Clone(m.Events),
	}

	if err := fn(m); err != nil {
		m.Variants = snap.variants
		m.Orders = snap.orders
		m.OrderItems = snap.orderItems
		m.Movements = snap.movements
		m.Events = snap.events
		return err
	}
	return nil
}

// Catalog

func (m *MockStore) ListCategories(ctx context.Context) ([]Category, error) {
	if err := m.fail("ListCategories"); err != nil {
		return nil, err
	}
	out := slices.Collect(maps.Values(m.Categories))
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MockStore) GetCategory(ctx context.Context, id pgtype.UUID) (Category, error) {
	if err := m.fail("GetCategory"); err != nil {
		return Category{}, err
	}
	c, ok := m.Categories[id.Bytes]
	if !ok {
		return Category{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *MockStore) ListActiveProducts(ctx context.Context, arg ListActiveProductsParams) ([]Product, error) {
	if err := m.fail("ListActiveProducts"); err != nil {
		return nil, err
	}
	var out []Product
	for _, p := range m.Products {
		if !p.IsActive || (arg.FeaturedOnly && !p.IsFeatured) {
			continue
		}
		if arg.CategorySlug.Valid {
			c, ok := m.Categories[p.CategoryID.Bytes]
			if !ok || !p.CategoryID.Valid || c.Slug != arg.CategorySlug.String {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsFeatured != out[j].IsFeatured {
			return out[i].IsFeatured
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MockStore) GetActiveProductBySlug(ctx context.Context, slug string) (Product, error) {
	if err := m.fail("GetActiveProductBySlug"); err != nil {
		return Product{}, err
	}
	for _, p := range m.Products {
		if p.Slug == slug && p.IsActive {
			return p, nil
		}
	}
	return Product{}, pgx.ErrNoRows
}

func (m *MockStore) ListActiveVariantsByProduct(ctx context.Context, productID pgtype.UUID) ([]ProductVariant, error) {
	if err := m.fail("ListActiveVariantsByProduct"); err != nil {
		return nil, err
	}
	var out []ProductVariant
	for _, v := range m.Variants {
		if v.ProductID == productID && v.IsActive {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sku < out[j].Sku })
	return out, nil
}

func (m *MockStore) GetVariantWithProduct(ctx context.Context, id pgtype.UUID) (GetVariantWithProductRow, error) {
	if err := m.fail("GetVariantWithProduct"); err != nil {
		return GetVariantWithProductRow{}, err
	}
	v, ok := m.Variants[id.Bytes]
	if !ok {
		return GetVariantWithProductRow{}, pgx.ErrNoRows
	}
	p, ok := m.Products[v.ProductID.Bytes]
	if !ok {
		return GetVariantWithProductRow{}, pgx.ErrNoRows
	}
	return GetVariantWithProductRow{
		ID:                 v.ID,
		ProductID:          v.ProductID,
		Size:               v.Size,
		Color:              v.Color,
		Sku:                v.Sku,
		StockQuantity:      v.StockQuantity,
		PriceOverridePence: v.PriceOverridePence,
		IsActive:           v.IsActive,
		ProductName:        p.Name,
		ProductSlug:        p.Slug,
		ProductPricePence:  p.PricePence,
		ProductIsActive:    p.IsActive,
		ImageUrl:           p.ImageUrl,
	}, nil
}

// Inventory

func (m *MockStore) LockVariantForUpdate(ctx context.Context, id pgtype.UUID) (ProductVariant, error) {
	if err := m.fail("LockVariantForUpdate"); err != nil {
		return ProductVariant{}, err
	}
	v, ok := m.Variants[id.Bytes]
	if !ok {
		return ProductVariant{}, pgx.ErrNoRows
	}
	return v, nil
}

func (m *MockStore) UpdateVariantStock(ctx context.Context, arg UpdateVariantStockParams) (ProductVariant, error) {
	if err := m.fail("UpdateVariantStock"); err != nil {
		return ProductVariant{}, err
	}
	v, ok := m.Variants[arg.ID.Bytes]
	if !ok {
		return ProductVariant{}, pgx.ErrNoRows
	}
	if arg.StockQuantity < 0 {
		return ProductVariant{}, &pgconn.PgError{Code: "23514", Message: "stock_quantity must not be negative"}
	}
	v.StockQuantity = arg.StockQuantity
	v.UpdatedAt = m.now()
	m.Variants[arg.ID.Bytes] = v
	return v, nil
}

func (m *MockStore) ListStockLevels(ctx context.Context, arg ListStockLevelsParams) ([]ListStockLevelsRow, error) {
	if err := m.fail("ListStockLevels"); err != nil {
		return nil, err
	}
	var out []ListStockLevelsRow
	for _, v := range m.Variants {
		if arg.LowStockThreshold.Valid && v.StockQuantity > arg.LowStockThreshold.Int32 {
			continue
		}
		out = append(out, ListStockLevelsRow{
			ID:            v.ID,
			ProductID:     v.ProductID,
			ProductName:   m.Products[v.ProductID.Bytes].Name,
			Sku:           v.Sku,
			Size:          v.Size,
			Color:         v.Color,
			StockQuantity: v.StockQuantity,
			IsActive:      v.IsActive,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StockQuantity != out[j].StockQuantity {
			return out[i].StockQuantity < out[j].StockQuantity
		}
		return out[i].Sku < out[j].Sku
	})
	return page(out, arg.Offset, arg.Limit), nil
}

func (m *MockStore) CreateInventoryMovement(ctx context.Context, arg CreateInventoryMovementParams) (InventoryMovement, error) {
	if err := m.fail("CreateInventoryMovement"); err != nil {
		return InventoryMovement{}, err
	}
	mv := InventoryMovement{
		ID:               newID(),
		ProductVariantID: arg.ProductVariantID,
		MovementType:     arg.MovementType,
		QuantityChange:   arg.QuantityChange,
		PreviousQuantity: arg.PreviousQuantity,
		NewQuantity:      arg.NewQuantity,
		Reference:        arg.Reference,
		Notes:            arg.Notes,
		CreatedAt:        m.now(),
	}
	m.Movements = append(m.Movements, mv)
	return mv, nil
}

func (m *MockStore) ListInventoryMovements(ctx context.Context, arg ListInventoryMovementsParams) ([]InventoryMovement, error) {
	if err := m.fail("ListInventoryMovements"); err != nil {
		return nil, err
	}
	var out []InventoryMovement
	for i := len(m.Movements) - 1; i >= 0; i-- {
		if m.Movements[i].ProductVariantID == arg.ProductVariantID {
			out = append(out, m.Movements[i])
		}
	}
	return page(out, 0, arg.Limit), nil
}

// Orders

func (m *MockStore) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	if err := m.fail("CreateOrder"); err != nil {
		return Order{}, err
	}
	if _, exists := m.OrderByNumber(arg.OrderNumber); exists {
		return Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}
	}
	if arg.IdempotencyKey.Valid {
		if _, exists := m.orderByIdempotencyKey(arg.IdempotencyKey.String); exists {
			return Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_idempotency_key_key"}
		}
	}
	if arg.TotalPence != arg.SubtotalPence+arg.ShippingPence+arg.TaxPence {
		return Order{}, &pgconn.PgError{Code: "23514", ConstraintName: "orders_total_check"}
	}
	o := Order{
		ID:                newID(),
		OrderNumber:       arg.OrderNumber,
		CustomerEmail:     arg.CustomerEmail,
		CustomerName:      arg.CustomerName,
		CustomerPhone:     arg.CustomerPhone,
		ShippingAddress:   arg.ShippingAddress,
		BillingAddress:    arg.BillingAddress,
		ShippingMethod:    arg.ShippingMethod,
		SubtotalPence:     arg.SubtotalPence,
		ShippingPence:     arg.ShippingPence,
		TaxPence:          arg.TaxPence,
		TotalPence:        arg.TotalPence,
		Currency:          arg.Currency,
		IdempotencyKey:    arg.IdempotencyKey,
		Status:            "pending",
		PaymentStatus:     "unpaid",
		FulfillmentStatus: "unfulfilled",
		CreatedAt:         m.now(),
	}
	o.UpdatedAt = o.CreatedAt
	m.Orders[o.ID.Bytes] = o
	return o, nil
}

func (m *MockStore) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	if err := m.fail("CreateOrderItem"); err != nil {
		return OrderItem{}, err
	}
	item := OrderItem{
		ID:                   newID(),
		OrderID:              arg.OrderID,
		ProductVariantID:     arg.ProductVariantID,
		ProductName:          arg.ProductName,
		VariantSku:           arg.VariantSku,
		VariantLabel:         arg.VariantLabel,
		Quantity:             arg.Quantity,
		PriceAtPurchasePence: arg.PriceAtPurchasePence,
	}
	m.OrderItems = append(m.OrderItems, item)
	return item, nil
}

func (m *MockStore) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	if err := m.fail("ListOrderItems"); err != nil {
		return nil, err
	}
	out := []OrderItem{}
	for _, item := range m.OrderItems {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MockStore) SetOrderStripeSession(ctx context.Context, arg SetOrderStripeSessionParams) error {
	if err := m.fail("SetOrderStripeSession"); err != nil {
		return err
	}
	o, ok := m.Orders[arg.ID.Bytes]
	if !ok {
		return nil
	}
	o.StripeSessionID = arg.StripeSessionID
	o.StripeSessionUrl = arg.StripeSessionUrl
	m.Orders[arg.ID.Bytes] = o
	return nil
}

func (m *MockStore) orderByIdempotencyKey(key string) (Order, bool) {
	for _, o := range m.Orders {
		if o.IdempotencyKey.Valid && o.IdempotencyKey.String == key {
			return o, true
		}
	}
	return Order{}, false
}

func (m *MockStore) GetOrderByIdempotencyKey(ctx context.Context, idempotencyKey string) (Order, error) {
	if err := m.fail("GetOrderByIdempotencyKey"); err != nil {
		return Order{}, err
	}
	o, ok := m.orderByIdempotencyKey(idempotencyKey)
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *MockStore) ReleaseOrderIdempotencyKey(ctx context.Context, id pgtype.UUID) error {
	if err := m.fail("ReleaseOrderIdempotencyKey"); err != nil {
		return err
	}
	o, ok := m.Orders[id.Bytes]
	if !ok {
		return nil
	}
	o.IdempotencyKey = pgtype.Text{}
	m.Orders[id.Bytes] = o
	return nil
}

func (m *MockStore) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	if err := m.fail("GetOrderByNumber"); err != nil {
		return Order{}, err
	}
	o, ok := m.OrderByNumber(orderNumber)
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *MockStore) LockOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	if err := m.fail("LockOrderByNumber"); err != nil {
		return Order{}, err
	}
	o, ok := m.OrderByNumber(orderNumber)
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *MockStore) MarkOrderPaid(ctx context.Context, arg MarkOrderPaidParams) (Order, error) {
	if err := m.fail("MarkOrderPaid"); err != nil {
		return Order{}, err
	}
	o, ok := m.Orders[arg.ID.Bytes]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	o.Status = "processing"
	o.PaymentStatus = "paid"
	if arg.StripePaymentIntentID.Valid {
		o.StripePaymentIntentID = arg.StripePaymentIntentID
	}
	if !o.StripeSessionID.Valid {
		o.StripeSessionID = arg.StripeSessionID
	}
	if strings.TrimSpace(o.CustomerEmail) == "" && arg.CustomerEmail.Valid {
		o.CustomerEmail = arg.CustomerEmail.String
	}
	o.PaidAt = m.now()
	o.UpdatedAt = o.PaidAt
	m.Orders[arg.ID.Bytes] = o
	return o, nil
}

func (m *MockStore) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	if err := m.fail("CancelOrder"); err != nil {
		return Order{}, err
	}
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	o, ok := m.Orders[arg.ID.Bytes]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	o.Status = "cancelled"
	o.PaymentStatus = arg.PaymentStatus
	o.CancelledAt = m.now()
	o.UpdatedAt = o.CancelledAt
	m.Orders[arg.ID.Bytes] = o
	return o, nil
}

// Webhooks

func (m *MockStore) ClaimWebhookEvent(ctx context.Context, arg ClaimWebhookEventParams) (int64, error) {
	if err := m.fail("ClaimWebhookEvent"); err != nil {
		return 0, err
	}
	if _, seen := m.Events[arg.EventID]; seen {
		return 0, nil
	}
	m.Events[arg.EventID] = arg.EventType
	return 1, nil
}

func (m *MockStore) CreateWebhookError(ctx context.Context, arg CreateWebhookErrorParams) error {
	if err := m.fail("CreateWebhookError"); err != nil {
		return err
	}
	m.Errors = append(m.Errors, arg)
	return nil
}

func page[T any](rows []T, offset, limit int32) []T {
	if offset > 0 {
		if int(offset) >= len(rows) {
			return []T{}
		}
		rows = rows[offset:]
	}
	if limit > 0 && int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

var _ Store = (*MockStore)(nil)
