package inventory

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
)

// Plan enumerates store subscription tiers.
type Plan string

const (
	// PlanTrial is the capped evaluation tier.
	PlanTrial Plan = "trial"
	// PlanStandard is the paid tier.
	PlanStandard Plan = "standard"
)

// Store carries the settings that govern stock decrements and reporting.
type Store struct {
	ID                 uuid.UUID
	Name               string
	Plan               Plan
	AllowNegativeStock bool
	Timezone           string
}

// Location resolves the store timezone, falling back to UTC.
func (s Store) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Product is the authoritative catalogue and stock row.
type Product struct {
	ID         uuid.UUID `json:"id"`
	StoreID    uuid.UUID `json:"store_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	CostCents  *int64    `json:"cost_cents,omitempty"`
	StockQty   int64     `json:"stock_qty"`
	MinStock   *int64    `json:"min_stock,omitempty"`
	Active     bool      `json:"active"`
	Barcode    *string   `json:"barcode,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MovementReason classifies stock changes.
type MovementReason string

const (
	// ReasonSale marks a checkout decrement.
	ReasonSale MovementReason = "SALE"
	// ReasonAdjustment marks a manual correction.
	ReasonAdjustment MovementReason = "ADJUST"
)

// Movement is one entry of the stock card.
type Movement struct {
	ID           int64          `json:"id"`
	ProductID    uuid.UUID      `json:"product_id"`
	Delta        int64          `json:"delta"`
	BalanceAfter int64          `json:"balance_after"`
	Reason       MovementReason `json:"reason"`
	Ref          string         `json:"ref,omitempty"`
	Note         string         `json:"note,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	PostedAt     time.Time      `json:"posted_at"`
}

// AdjustmentInput describes request to adjust stock.
type AdjustmentInput struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
	Delta     int64
	Code      string
	Note      string
	ActorID   string
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	StoreID   uuid.UUID
	ProductID uuid.UUID
	From      time.Time
	To        time.Time
	Limit     int
}

var (
	// ErrInsufficientStock is returned when a decrement would exceed stock.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrProductNotFound indicates an unknown product for the store.
	ErrProductNotFound = errors.New("inventory: product not found")
	// ErrStoreNotFound indicates an unknown store.
	ErrStoreNotFound = errors.New("inventory: store not found")
	// ErrNegativeStock triggered when an adjustment would result negative qty.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")
)

// ShortageError reports a rejected decrement together with the stock seen.
type ShortageError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Unwrap lets errors.Is match ErrInsufficientStock.
func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }
