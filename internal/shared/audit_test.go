package shared

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	tag   string
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(f.tag), f.err
}

func TestAuditLoggerRecord(t *testing.T) {
	exec := &fakeExecer{}
	logger := NewAuditLogger(exec)
	fixed := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	logger.now = func() time.Time { return fixed }
	storeID := uuid.New()

	err := logger.Record(context.Background(), AuditLog{
		StoreID:  storeID,
		ActorID:  "cashier-1",
		Action:   "checkout:complete",
		Entity:   "sale",
		EntityID: "s-1",
		Meta:     map[string]any{"total_cents": 2500},
	})
	require.NoError(t, err)
	require.Len(t, exec.calls, 1)

	args := exec.calls[0].args
	require.Len(t, args, 7)
	assert.Equal(t, &storeID, args[0])
	assert.Equal(t, "checkout:complete", args[2])
	assert.Equal(t, fixed, args[6])

	var meta map[string]any
	require.NoError(t, json.Unmarshal(args[5].([]byte), &meta))
	assert.EqualValues(t, 2500, meta["total_cents"])
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	exec := &fakeExecer{}
	logger := NewAuditLogger(exec)

	require.Error(t, logger.Record(context.Background(), AuditLog{Entity: "sale", EntityID: "1"}))
	require.Error(t, logger.Record(context.Background(), AuditLog{Action: "checkout:complete", Entity: "sale"}))
	assert.Empty(t, exec.calls)

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}

func TestAuditLoggerWrapsInsertError(t *testing.T) {
	boom := errors.New("connection reset")
	logger := NewAuditLogger(&fakeExecer{err: boom})

	err := logger.Record(context.Background(), AuditLog{Action: "inventory:adjust", Entity: "product", EntityID: "p"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "inventory:adjust")
}
