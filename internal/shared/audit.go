package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// AuditLog is one row of audit_logs. Action is "<module>:<verb>", e.g.
// "checkout:complete" or "cashsession:close".
type AuditLog struct {
	StoreID  uuid.UUID
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

func (l AuditLog) validate() error {
	switch {
	case l.Action == "":
		return errors.New("audit: action required")
	case l.Entity == "" || l.EntityID == "":
		return errors.New("audit: entity reference required")
	}
	return nil
}

type auditExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger appends to audit_logs. Callers treat failures as non-fatal.
type AuditLogger struct {
	db  auditExecer
	now func() time.Time
}

// NewAuditLogger returns an AuditLogger writing through db.
func NewAuditLogger(db auditExecer) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

const insertAuditLog = `
INSERT INTO audit_logs (store_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// Record persists the entry, stamping it with the current time when At is zero.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit: logger not initialised")
	}
	if err := log.validate(); err != nil {
		return err
	}
	meta, err := json.Marshal(log.Meta)
	if err != nil {
		return fmt.Errorf("audit: encode meta: %w", err)
	}
	at := log.At
	if at.IsZero() {
		at = l.now()
	}
	var store *uuid.UUID
	if log.StoreID != uuid.Nil {
		store = &log.StoreID
	}
	if _, err := l.db.Exec(ctx, insertAuditLog, store, log.ActorID, log.Action, log.Entity, log.EntityID, meta, at.UTC()); err != nil {
		return fmt.Errorf("audit: insert %s: %w", log.Action, err)
	}
	return nil
}
