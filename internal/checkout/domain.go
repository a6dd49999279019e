// Package checkout turns a cart into a persisted sale while decrementing
// stock, compensating when a non-transactional run fails partway.
package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/cart"
	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// PaymentMethod is the closed set of tenders.
type PaymentMethod string

const (
	PaymentCash            PaymentMethod = "cash"
	PaymentCard            PaymentMethod = "card"
	PaymentInstantTransfer PaymentMethod = "instant_transfer"
)

// Valid reports membership in the closed set.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentInstantTransfer:
		return true
	}
	return false
}

// Sale is an immutable sale header with its items.
type Sale struct {
	ID            uuid.UUID     `json:"id"`
	StoreID       uuid.UUID     `json:"store_id"`
	CreatedAt     time.Time     `json:"created_at"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []SaleItem    `json:"items,omitempty"`
}

// SaleItem snapshots the price and labels at sale time.
type SaleItem struct {
	ID             uuid.UUID `json:"id"`
	SaleID         uuid.UUID `json:"sale_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	ProductName    string    `json:"product_name"`
	Barcode        *string   `json:"barcode,omitempty"`
	LineNo         int       `json:"line_no"`
}

// Request is the input of a checkout.
type Request struct {
	StoreID        uuid.UUID
	Items          []cart.Item
	PaymentMethod  PaymentMethod
	IdempotencyKey string
	ActorID        string
}

// Quote is a priced cart preview.
type Quote struct {
	StoreID    uuid.UUID   `json:"store_id"`
	Items      []cart.Item `json:"items"`
	TotalCents int64       `json:"total_cents"`
}

// SaleFilter narrows sale listings.
type SaleFilter struct {
	StoreID       uuid.UUID
	From          time.Time
	To            time.Time
	PaymentMethod PaymentMethod
	Page          int
	PerPage       int
}

// Decrement records a stock decrement already applied.
type Decrement struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int64     `json:"quantity"`
}

// Failed steps reported in partial failures.
const (
	StepInsertItem     = "insert_item"
	StepDecrementStock = "decrement_stock"
)

// PartialFailure describes a checkout that stopped after writing. It is
// logged and queued for out-of-band reconciliation.
type PartialFailure struct {
	SaleID      uuid.UUID   `json:"sale_id"`
	StoreID     uuid.UUID   `json:"store_id"`
	FailedStep  string      `json:"failed_step"`
	LineNo      int         `json:"line_no"`
	Cause       string      `json:"cause"`
	Compensated bool        `json:"compensated"`
	Decremented []Decrement `json:"decremented"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

var (
	// ErrInsufficientStock matches validator and gateway stock rejections.
	ErrInsufficientStock = inventory.ErrInsufficientStock
	// ErrEmptyCart is returned for a checkout without items.
	ErrEmptyCart = cart.ErrEmptyCart
	// ErrInvalidPaymentMethod is returned for tenders outside the closed set.
	ErrInvalidPaymentMethod = errors.New("checkout: invalid payment method")
	// ErrSaleNotFound indicates an unknown sale.
	ErrSaleNotFound = errors.New("checkout: sale not found")
)

// TransactionAbortedError reports a checkout that failed after its header
// was written. Stock already decremented is not restored; callers must
// verify inventory before retrying.
type TransactionAbortedError struct {
	SaleID      uuid.UUID
	Step        string
	Cause       error
	Compensated bool
	Decremented []Decrement
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("checkout: transaction aborted at %s for sale %s (compensated=%t): %v", e.Step, e.SaleID, e.Compensated, e.Cause)
}

func (e *TransactionAbortedError) Unwrap() error { return e.Cause }
