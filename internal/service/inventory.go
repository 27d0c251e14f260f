package service

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/dukerupert/quartermaster/internal/domain"
	"github.com/dukerupert/quartermaster/internal/postgres"
	"github.com/dukerupert/quartermaster/internal/repository"
	"github.com/dukerupert/quartermaster/internal/telemetry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	defaultStockLimit    = 50
	maxStockLimit        = 200
	defaultMovementLimit = 20
	maxMovementLimit     = 100
)

// InventoryService handles manual stock corrections by admins.
type InventoryService interface {
	// Adjust applies a delta or an absolute quantity to one variant. The
	// result is floored at zero and logged as a movement.
	Adjust(ctx context.Context, params AdjustParams) (*AdjustResult, error)

	// BulkAdjust applies Adjust to each item independently. Items that fail
	// are reported and do not roll back items that succeeded.
	BulkAdjust(ctx context.Context, items []AdjustParams) (*BulkAdjustResult, error)

	// ListStock returns stock levels, optionally only those at or below a
	// threshold.
	ListStock(ctx context.Context, filter StockFilter) ([]domain.StockLevel, error)

	// ListMovements returns the most recent movements for a variant.
	ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]domain.InventoryMovement, error)
}

// AdjustParams describes one stock change. Exactly one of QuantityChange and
// NewStockQuantity must be set.
type AdjustParams struct {
	VariantID        uuid.UUID
	QuantityChange   *int
	NewStockQuantity *int
	// MovementType defaults to adjustment.
	MovementType domain.MovementType
	Notes        string
}

// AdjustResult is the outcome of a single adjustment.
type AdjustResult struct {
	Variant          domain.Variant           `json:"variant"`
	PreviousQuantity int                      `json:"previousQuantity"`
	NewQuantity      int                      `json:"newQuantity"`
	Movement         domain.InventoryMovement `json:"movement"`
}

// BulkAdjustResult collects per-item outcomes.
type BulkAdjustResult struct {
	Results []AdjustResult  `json:"results"`
	Errors  []BulkItemError `json:"errors"`
}

// BulkItemError reports a failed item by its position in the request.
type BulkItemError struct {
	Index     int       `json:"index"`
	VariantID uuid.UUID `json:"productVariantId"`
	Error     string    `json:"error"`
}

// StockFilter narrows ListStock. A nil LowStockThreshold lists every variant.
type StockFilter struct {
	LowStockThreshold *int
	Limit             int
	Offset            int
}

type inventoryService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewInventoryService creates a new InventoryService instance.
func NewInventoryService(store repository.Store, logger *slog.Logger) InventoryService {
	return &inventoryService{
		store:  store,
		logger: logger.With("service", "inventory"),
	}
}

func (s *inventoryService) Adjust(ctx context.Context, params AdjustParams) (*AdjustResult, error) {
	const op = "inventory.adjust"

	action := "adjust"
	if params.NewStockQuantity != nil {
		action = "set"
	}

	result, err := s.adjust(ctx, op, params)
	if telemetry.Business != nil {
		status := "ok"
		if err != nil {
			status = domain.ErrorCode(err)
		}
		telemetry.Business.InventoryAdjustment.WithLabelValues(action, status).Inc()
	}
	return result, err
}

func (s *inventoryService) adjust(ctx context.Context, op string, params AdjustParams) (*AdjustResult, error) {
	if params.VariantID == uuid.Nil {
		return nil, ErrMissingVariantID
	}
	if (params.QuantityChange == nil) == (params.NewStockQuantity == nil) {
		return nil, domain.ErrAdjustmentAmbiguous
	}
	if !inStockRange(params.QuantityChange) || !inStockRange(params.NewStockQuantity) {
		return nil, domain.ErrStockOutOfRange
	}

	movementType := params.MovementType
	if movementType == "" {
		movementType = domain.MovementAdjustment
	}
	if movementType == domain.MovementSale {
		return nil, domain.ErrSaleMovementType
	}
	if !movementType.Valid() {
		return nil, ErrInvalidMovementType
	}

	var result AdjustResult
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		variant, err := q.LockVariantForUpdate(ctx, postgres.PgUUID(params.VariantID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.NotFound(op, "Product variant", params.VariantID.String())
			}
			return domain.Internal(err, op, "failed to lock variant")
		}

		prev := int(variant.StockQuantity)
		var next int
		if params.QuantityChange != nil {
			next = domain.ClampStock(prev, *params.QuantityChange)
		} else {
			next = domain.ClampStock(*params.NewStockQuantity, 0)
		}
		if next > math.MaxInt32 {
			return domain.Invalid(op, "Stock quantity is too large")
		}

		updated, err := q.UpdateVariantStock(ctx, repository.UpdateVariantStockParams{
			ID:            variant.ID,
			StockQuantity: int32(next),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to update stock")
		}

		movement, err := q.CreateInventoryMovement(ctx, repository.CreateInventoryMovementParams{
			ProductVariantID: variant.ID,
			MovementType:     string(movementType),
			QuantityChange:   int32(next - prev),
			PreviousQuantity: int32(prev),
			NewQuantity:      int32(next),
			Notes:            params.Notes,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to record stock movement")
		}

		result = AdjustResult{
			Variant:          postgres.VariantFromRow(updated),
			PreviousQuantity: prev,
			NewQuantity:      next,
			Movement:         postgres.MovementFromRow(movement),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.StockMovements.WithLabelValues(string(movementType)).Inc()
	}

	s.logger.InfoContext(ctx, "stock adjusted",
		"sku", result.Variant.SKU,
		"movement_type", movementType,
		"previous", result.PreviousQuantity,
		"new", result.NewQuantity,
	)

	return &result, nil
}

func (s *inventoryService) BulkAdjust(ctx context.Context, items []AdjustParams) (*BulkAdjustResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBulk
	}

	out := &BulkAdjustResult{
		Results: make([]AdjustResult, 0, len(items)),
		Errors:  []BulkItemError{},
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := s.adjust(ctx, "inventory.bulk_adjust", item)
		if err != nil {
			if domain.ErrorCode(err) == domain.EINTERNAL {
				s.logger.ErrorContext(ctx, "bulk adjustment item failed", "index", i, "error", err)
			}
			out.Errors = append(out.Errors, BulkItemError{
				Index:     i,
				VariantID: item.VariantID,
				Error:     domain.ErrorMessage(err),
			})
			continue
		}
		out.Results = append(out.Results, *res)
	}

	if telemetry.Business != nil {
		status := "ok"
		if len(out.Errors) > 0 {
			status = "partial"
		}
		telemetry.Business.InventoryAdjustment.WithLabelValues("bulk", status).Inc()
	}

	return out, nil
}

func (s *inventoryService) ListStock(ctx context.Context, filter StockFilter) ([]domain.StockLevel, error) {
	params := repository.ListStockLevelsParams{
		Limit:  int32(clampLimit(filter.Limit, defaultStockLimit, maxStockLimit)),
		Offset: int32(max(filter.Offset, 0)),
	}
	if filter.LowStockThreshold != nil {
		params.LowStockThreshold = pgtype.Int4{Int32: int32(*filter.LowStockThreshold), Valid: true}
	}

	rows, err := s.store.ListStockLevels(ctx, params)
	if err != nil {
		return nil, domain.Internal(err, "inventory.list_stock", "failed to list stock levels")
	}

	out := make([]domain.StockLevel, len(rows))
	for i, row := range rows {
		out[i] = postgres.StockLevelFromRow(row)
	}
	return out, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, variantID uuid.UUID, limit int) ([]domain.InventoryMovement, error) {
	if variantID == uuid.Nil {
		return nil, ErrMissingVariantID
	}

	rows, err := s.store.ListInventoryMovements(ctx, repository.ListInventoryMovementsParams{
		ProductVariantID: postgres.PgUUID(variantID),
		Limit:            int32(clampLimit(limit, defaultMovementLimit, maxMovementLimit)),
	})
	if err != nil {
		return nil, domain.Internal(err, "inventory.list_movements", "failed to list stock movements")
	}

	out := make([]domain.InventoryMovement, len(rows))
	for i, row := range rows {
		out[i] = postgres.MovementFromRow(row)
	}
	return out, nil
}

func inStockRange(n *int) bool {
	return n == nil || (*n >= -domain.MaxStockAdjustment && *n <= domain.MaxStockAdjustment)
}

func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, ceiling)
}
