package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/jackc/pgx/v5"
)

// OrderService implements domain.OrderService using PostgreSQL.
type OrderService struct {
	repo repository.Querier
}

var _ domain.OrderService = (*OrderService)(nil)

func NewOrderService(repo repository.Querier) *OrderService {
	return &OrderService{repo: repo}
}

// GetOrderByNumber returns the order with its items for the confirmation page.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*domain.OrderDetail, error) {
	const op = "order.get"

	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	if orderNumber == "" {
		return nil, domain.Invalid(op, "Order number is required")
	}

	row, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound(op, "Order", orderNumber)
		}
		return nil, domain.Internal(err, op, "failed to load order")
	}

	items, err := s.repo.ListOrderItems(ctx, row.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load order items")
	}

	return &domain.OrderDetail{
		Order: OrderFromRow(row),
		Items: OrderItemsFromRows(items),
	}, nil
}
