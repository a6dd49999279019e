package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error)
	LowStock(ctx context.Context, storeID *uuid.UUID) ([]Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort claims and releases processed keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, storeID uuid.UUID, key, module string) error
	Delete(ctx context.Context, storeID uuid.UUID, key, module string) error
}

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, now: time.Now}
}

const idempotencyModule = "inventory"

// PostAdjustment posts a manual adjustment which may be positive or negative.
// A repeated code for the same product is rejected.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (Movement, error) {
	if input.StoreID == uuid.Nil || input.ProductID == uuid.Nil {
		return Movement{}, errors.New("inventory: store and product required")
	}
	if input.Delta == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	now := s.now().UTC()
	code := input.Code
	if code == "" {
		code = fmt.Sprintf("ADJ-%d", now.UnixNano())
	}

	key := fmt.Sprintf("%s:%s:%s", ReasonAdjustment, code, input.ProductID)
	insertedKey := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.StoreID, key, idempotencyModule); err != nil {
			return Movement{}, err
		}
		insertedKey = true
	}

	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, store, err := tx.LockProduct(ctx, input.StoreID, input.ProductID)
		if err != nil {
			return err
		}
		newQty := product.StockQty + input.Delta
		if newQty < 0 && !store.AllowNegativeStock {
			return ErrNegativeStock
		}
		if err := tx.SetStock(ctx, product.ID, newQty); err != nil {
			return err
		}
		movement, err = tx.InsertMovement(ctx, Movement{
			ProductID:    product.ID,
			Delta:        input.Delta,
			BalanceAfter: newQty,
			Reason:       ReasonAdjustment,
			Ref:          code,
			Note:         input.Note,
			ActorID:      input.ActorID,
			PostedAt:     now,
		})
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.StoreID, key, idempotencyModule)
		}
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			StoreID:  input.StoreID,
			ActorID:  input.ActorID,
			Action:   "inventory:adjust",
			Entity:   "product",
			EntityID: input.ProductID.String(),
			Meta: map[string]any{
				"delta":         input.Delta,
				"balance_after": movement.BalanceAfter,
				"code":          code,
				"note":          input.Note,
			},
		})
	}
	return movement, nil
}

// StockCard lists movement history.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	if filter.StoreID == uuid.Nil || filter.ProductID == uuid.Nil {
		return nil, errors.New("inventory: store and product required")
	}
	return s.repo.StockCard(ctx, filter)
}

// LowStock lists products at or below their minimum. uuid.Nil scans all stores.
func (s *Service) LowStock(ctx context.Context, storeID uuid.UUID) ([]Product, error) {
	if storeID == uuid.Nil {
		return s.repo.LowStock(ctx, nil)
	}
	return s.repo.LowStock(ctx, &storeID)
}
