package cashsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
)

// PGRepository stores sessions in cash_register_sessions.
type PGRepository struct {
	db db.DBTX
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{db: conn}
}

const sessionColumns = `id, store_id, opened_at, closed_at, opening_amount_cents, closing_amount_cents, counted_amount_cents`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.StoreID, &s.OpenedAt, &s.ClosedAt, &s.OpeningAmountCents, &s.ClosingAmountCents, &s.CountedAmountCents)
	return s, err
}

// Insert writes a new open session. The partial unique index rejects a
// second open session for the store.
func (r *PGRepository) Insert(ctx context.Context, s Session) error {
	_, err := r.db.Exec(ctx, `INSERT INTO cash_register_sessions (id, store_id, opened_at, opening_amount_cents) VALUES ($1, $2, $3, $4)`,
		s.ID, s.StoreID, s.OpenedAt, s.OpeningAmountCents)
	if db.IsUniqueViolation(err) {
		return ErrSessionAlreadyOpen
	}
	if err != nil {
		return fmt.Errorf("cashsession: insert: %w", err)
	}
	return nil
}

// Get loads a session by id; unknown ids map to ErrNoOpenSession.
func (r *PGRepository) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_register_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNoOpenSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("cashsession: get: %w", err)
	}
	return s, nil
}

// Current loads the store's open session.
func (r *PGRepository) Current(ctx context.Context, storeID uuid.UUID) (Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_register_sessions WHERE store_id = $1 AND closed_at IS NULL`, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNoOpenSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("cashsession: current: %w", err)
	}
	return s, nil
}

// MarkClosed closes the session only while it is still open.
func (r *PGRepository) MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time, closing int64, counted *int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE cash_register_sessions
		SET closed_at = $2, closing_amount_cents = $3, counted_amount_cents = $4
		WHERE id = $1 AND closed_at IS NULL`, id, closedAt, closing, counted)
	if err != nil {
		return false, fmt.Errorf("cashsession: close: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
