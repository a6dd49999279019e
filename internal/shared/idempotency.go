package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// ErrIdempotencyConflict indicates a duplicate key. Replays are rejected,
// never answered with the earlier result.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

type idempotencyExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// IdempotencyStore claims client request keys in idempotency_keys. Keys are
// namespaced by module and store, so two stores may use the same key.
type IdempotencyStore struct {
	db  idempotencyExecer
	now func() time.Time
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(conn idempotencyExecer) *IdempotencyStore {
	return &IdempotencyStore{db: conn, now: time.Now}
}

func scopedKey(storeID uuid.UUID, key, module string) (string, error) {
	switch {
	case key == "":
		return "", errors.New("idempotency: key required")
	case module == "":
		return "", errors.New("idempotency: module required")
	case storeID == uuid.Nil:
		return "", ErrStoreRequired
	}
	return module + ":" + storeID.String() + ":" + key, nil
}

// CheckAndInsert claims key for module within a store, returning
// ErrIdempotencyConflict when it was claimed before.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, storeID uuid.UUID, key, module string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency: store not initialised")
	}
	scoped, err := scopedKey(storeID, key, module)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO idempotency_keys (key, module, store_id, created_at) VALUES ($1, $2, $3, $4)`, scoped, module, storeID, s.now().UTC())
	switch {
	case db.IsUniqueViolation(err):
		return ErrIdempotencyConflict
	case err != nil:
		return fmt.Errorf("idempotency: claim: %w", err)
	}
	return nil
}

// Delete releases a claim after a request failed without side effects.
func (s *IdempotencyStore) Delete(ctx context.Context, storeID uuid.UUID, key, module string) error {
	if s == nil || s.db == nil {
		return nil
	}
	scoped, err := scopedKey(storeID, key, module)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, scoped); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// Cleanup removes claims older than the retention window and returns how
// many were dropped.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-olderThan).UTC())
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}
