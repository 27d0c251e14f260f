package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sortOrder"`
}

type Product struct {
	ID          uuid.UUID  `json:"id"`
	CategoryID  *uuid.UUID `json:"categoryId,omitempty"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Price       Money      `json:"price"`
	ImageURL    string     `json:"imageUrl"`
	IsActive    bool       `json:"isActive"`
	IsFeatured  bool       `json:"isFeatured"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Variant is a size/colour SKU of a product. Stock is tracked per variant.
type Variant struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"productId"`
	Size          string    `json:"size"`
	Color         string    `json:"color"`
	SKU           string    `json:"sku"`
	StockQuantity int       `json:"stockQuantity"`
	PriceOverride *Money    `json:"priceOverride,omitempty"`
	IsActive      bool      `json:"isActive"`
}

// EffectivePrice returns the variant's override price when set, otherwise
// the product's base price.
func (v Variant) EffectivePrice(base Money) Money {
	if v.PriceOverride != nil {
		return *v.PriceOverride
	}
	return base
}

// Label is the human description of the variant, e.g. "M / Olive".
func (v Variant) Label() string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(v.Size); s != "" {
		parts = append(parts, s)
	}
	if c := strings.TrimSpace(v.Color); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, " / ")
}

// PurchasableVariant is a variant joined with the product fields checkout needs.
type PurchasableVariant struct {
	Variant
	ProductName     string
	ProductSlug     string
	ProductPrice    Money
	ProductIsActive bool
	ImageURL        string
}

// Purchasable reports whether both the variant and its product are live.
func (p PurchasableVariant) Purchasable() bool {
	return p.IsActive && p.ProductIsActive
}

// UnitPrice is the price a customer pays for one unit today.
func (p PurchasableVariant) UnitPrice() Money {
	return p.EffectivePrice(p.ProductPrice)
}

// DisplayName is the line-item name shown on the hosted checkout page.
func (p PurchasableVariant) DisplayName() string {
	if label := p.Label(); label != "" {
		return fmt.Sprintf("%s - %s", p.ProductName, label)
	}
	return p.ProductName
}

// ProductDetail is a product with its active variants.
type ProductDetail struct {
	Product
	Category *Category       `json:"category,omitempty"`
	Variants []VariantDetail `json:"variants"`
}

// VariantDetail is what the storefront shows for one variant.
type VariantDetail struct {
	Variant
	Price   Money `json:"price"`
	InStock bool  `json:"inStock"`
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	CategorySlug string
	FeaturedOnly bool
}

// CatalogService provides read access to the storefront catalog.
type CatalogService interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, slug string) (*ProductDetail, error)
}
