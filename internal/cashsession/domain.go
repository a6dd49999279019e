// Package cashsession tracks the cash drawer of a store between opening and
// closing.
package cashsession

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/reports"
)

var (
	// ErrSessionAlreadyOpen indicates the store already has an open drawer.
	ErrSessionAlreadyOpen = errors.New("cashsession: session already open")
	// ErrNoOpenSession indicates the session is unknown or already closed.
	ErrNoOpenSession = errors.New("cashsession: no open session")
	// ErrSessionBusy indicates another open for the store is in flight.
	ErrSessionBusy = errors.New("cashsession: open in progress")
	// ErrInvalidAmount indicates a negative cash amount.
	ErrInvalidAmount = errors.New("cashsession: amount must be non-negative")
)

// Session is one cash-register session. ClosedAt is nil while open.
type Session struct {
	ID                 uuid.UUID  `json:"id"`
	StoreID            uuid.UUID  `json:"store_id"`
	OpenedAt           time.Time  `json:"opened_at"`
	ClosedAt           *time.Time `json:"closed_at,omitempty"`
	OpeningAmountCents int64      `json:"opening_amount_cents"`
	ClosingAmountCents *int64     `json:"closing_amount_cents,omitempty"`
	CountedAmountCents *int64     `json:"counted_amount_cents,omitempty"`
}

// Open reports whether the session has not been closed.
func (s Session) Open() bool { return s.ClosedAt == nil }

// Summary is the result of closing a session.
type Summary struct {
	Session           Session         `json:"session"`
	Sales             reports.Summary `json:"sales"`
	ExpectedCashCents int64           `json:"expected_cash_cents"`
	// DiscrepancyCents is counted minus expected; nil when nothing was counted.
	DiscrepancyCents *int64 `json:"discrepancy_cents,omitempty"`
}
