package postgres

import (
	"context"
	"errors"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/jackc/pgx/v5"
)

// CatalogService implements domain.CatalogService using PostgreSQL.
type CatalogService struct {
	repo repository.Querier
}

// Compile-time check that CatalogService implements domain.CatalogService.
var _ domain.CatalogService = (*CatalogService)(nil)

func NewCatalogService(repo repository.Querier) *CatalogService {
	return &CatalogService{repo: repo}
}

// ListCategories returns all categories in display order.
func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_categories", "failed to list categories")
	}

	out := make([]domain.Category, len(rows))
	for i, row := range rows {
		out[i] = CategoryFromRow(row)
	}
	return out, nil
}

// ListProducts returns active products, featured first.
func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	rows, err := s.repo.ListActiveProducts(ctx, repository.ListActiveProductsParams{
		CategorySlug: PgText(filter.CategorySlug),
		FeaturedOnly: filter.FeaturedOnly,
	})
	if err != nil {
		return nil, domain.Internal(err, "catalog.list_products", "failed to list products")
	}

	out := make([]domain.Product, len(rows))
	for i, row := range rows {
		out[i] = ProductFromRow(row)
	}
	return out, nil
}

// GetProduct returns an active product with its active variants priced
// for display.
func (s *CatalogService) GetProduct(ctx context.Context, slug string) (*domain.ProductDetail, error) {
	const op = "catalog.get_product"

	row, err := s.repo.GetActiveProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "Product", slug)
		}
		return nil, domain.Internal(err, op, "failed to load product")
	}

	detail := &domain.ProductDetail{Product: ProductFromRow(row)}

	if row.CategoryID.Valid {
		cat, err := s.repo.GetCategory(ctx, row.CategoryID)
		switch {
		case err == nil:
			c := CategoryFromRow(cat)
			detail.Category = &c
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, domain.Internal(err, op, "failed to load category")
		}
	}

	variants, err := s.repo.ListActiveVariantsByProduct(ctx, row.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load variants")
	}

	detail.Variants = make([]domain.VariantDetail, len(variants))
	for i, v := range variants {
		dv := VariantFromRow(v)
		detail.Variants[i] = domain.VariantDetail{
			Variant: dv,
			Price:   dv.EffectivePrice(detail.Price),
			InStock: dv.StockQuantity > 0,
		}
	}

	return detail, nil
}
