package cashsession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Repository persists sessions.
type Repository interface {
	Insert(ctx context.Context, session Session) error
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	Current(ctx context.Context, storeID uuid.UUID) (Session, error)
	// MarkClosed stamps an open session and reports false when it was
	// already closed.
	MarkClosed(ctx context.Context, id uuid.UUID, closedAt time.Time, closing int64, counted *int64) (bool, error)
}

// Locker serialises opens for one store.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Deps groups collaborators; Locker, Audit and Metrics are optional.
type Deps struct {
	Repo    Repository
	Sales   reports.SalesSource
	Locker  Locker
	Audit   AuditPort
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Manager opens and closes cash sessions.
type Manager struct {
	repo    Repository
	sales   reports.SalesSource
	locker  Locker
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	lockTTL time.Duration
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewManager constructs a manager. lockTTL defaults to ten seconds.
func NewManager(deps Deps, lockTTL time.Duration) *Manager {
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:    deps.Repo,
		sales:   deps.Sales,
		locker:  deps.Locker,
		audit:   deps.Audit,
		metrics: deps.Metrics,
		logger:  logger.With(slog.String("component", "cashsession")),
		tracer:  otel.Tracer("github.com/odyssey-erp/odyssey-pos/internal/cashsession"),
		lockTTL: lockTTL,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// Open starts a session for the store with the given float.
func (m *Manager) Open(ctx context.Context, storeID uuid.UUID, openingCents int64, actorID string) (Session, error) {
	ctx, span := m.tracer.Start(ctx, "cashsession.Open", trace.WithAttributes(attribute.String("store.id", storeID.String())))
	defer span.End()

	if storeID == uuid.Nil {
		return Session{}, shared.ErrStoreRequired
	}
	if openingCents < 0 {
		return Session{}, ErrInvalidAmount
	}

	release, err := m.lock(ctx, storeID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Session{}, err
	}
	defer release()

	if _, err := m.repo.Current(ctx, storeID); err == nil {
		return Session{}, ErrSessionAlreadyOpen
	} else if !errors.Is(err, ErrNoOpenSession) {
		return Session{}, err
	}

	session := Session{
		ID:                 m.newID(),
		StoreID:            storeID,
		OpenedAt:           m.now().UTC(),
		OpeningAmountCents: openingCents,
	}
	if err := m.repo.Insert(ctx, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Session{}, err
	}

	m.metrics.RecordCashSession("open")
	m.record(ctx, actorID, "cashsession:open", session, map[string]any{"opening_amount_cents": openingCents})
	m.logger.Info("cash session opened", slog.String("session_id", session.ID.String()), slog.String("store_id", storeID.String()))
	return session, nil
}

// lock takes the per-store open lock. Without a locker, or when Redis is
// unreachable, the partial unique index still rejects a second open.
func (m *Manager) lock(ctx context.Context, storeID uuid.UUID) (func(), error) {
	noop := func() {}
	if m.locker == nil {
		return noop, nil
	}
	unlock, err := m.locker.Acquire(ctx, shared.CashSessionLockKey(storeID), m.lockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, ErrSessionBusy
	}
	if err != nil {
		m.logger.Warn("cash session lock unavailable", slog.String("store_id", storeID.String()), slog.Any("error", err))
		return noop, nil
	}
	return func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("cash session unlock failed", slog.Any("error", err))
		}
	}, nil
}

// Close ends an open session. Expected cash is the opening float plus cash
// sales created between opening and now. A store scope on ctx must match the
// session's store.
func (m *Manager) Close(ctx context.Context, sessionID uuid.UUID, countedCents *int64, actorID string) (Summary, error) {
	ctx, span := m.tracer.Start(ctx, "cashsession.Close", trace.WithAttributes(attribute.String("session.id", sessionID.String())))
	defer span.End()

	if countedCents != nil && *countedCents < 0 {
		return Summary{}, ErrInvalidAmount
	}
	session, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}
	if scope, ok := shared.StoreFromContext(ctx); ok && scope != session.StoreID {
		return Summary{}, ErrNoOpenSession
	}
	if !session.Open() {
		return Summary{}, ErrNoOpenSession
	}

	closedAt := m.now().UTC()
	sales, err := m.sales.SalesBetween(ctx, session.StoreID, session.OpenedAt, closedAt)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, fmt.Errorf("cashsession: load sales: %w", err)
	}
	agg := reports.Aggregate(sales, nil, session.OpenedAt, closedAt)
	expected := session.OpeningAmountCents + agg.CashTotal()

	closed, err := m.repo.MarkClosed(ctx, session.ID, closedAt, expected, countedCents)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}
	if !closed {
		return Summary{}, ErrNoOpenSession
	}

	session.ClosedAt = &closedAt
	session.ClosingAmountCents = &expected
	session.CountedAmountCents = countedCents
	summary := Summary{Session: session, Sales: agg, ExpectedCashCents: expected}
	if countedCents != nil {
		diff := *countedCents - expected
		summary.DiscrepancyCents = &diff
	}

	m.metrics.RecordCashSession("close")
	meta := map[string]any{"expected_cash_cents": expected}
	if summary.DiscrepancyCents != nil {
		meta["discrepancy_cents"] = *summary.DiscrepancyCents
	}
	m.record(ctx, actorID, "cashsession:close", session, meta)
	m.logger.Info("cash session closed",
		slog.String("session_id", session.ID.String()),
		slog.Int64("expected_cash_cents", expected),
		slog.Int("sales", agg.Count),
	)
	return summary, nil
}

// Current returns the store's open session.
func (m *Manager) Current(ctx context.Context, storeID uuid.UUID) (Session, error) {
	if storeID == uuid.Nil {
		return Session{}, shared.ErrStoreRequired
	}
	return m.repo.Current(ctx, storeID)
}

func (m *Manager) record(ctx context.Context, actorID, action string, session Session, meta map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Record(ctx, shared.AuditLog{
		StoreID:  session.StoreID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "cash_register_session",
		EntityID: session.ID.String(),
		Meta:     meta,
		At:       m.now(),
	}); err != nil {
		m.logger.Warn("audit cash session",
			slog.String("action", action),
			slog.String("session_id", session.ID.String()),
			slog.Any("error", err))
	}
}
