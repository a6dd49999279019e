// Package cart holds the request-scoped cart and the pure validator that
// turns it into priced sale lines.
package cart

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/google/uuid"
)

// Item is a cart entry with the price and labels captured when it was added.
type Item struct {
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	SubtotalCents  int64     `json:"subtotal_cents"`
	Name           string    `json:"name"`
	Barcode        *string   `json:"barcode,omitempty"`
}

// Line is a validated, priced line ready to persist as a sale item.
type Line struct {
	ProductID      uuid.UUID
	Quantity       int64
	UnitPriceCents int64
	SubtotalCents  int64
	Name           string
	Barcode        *string
}

var (
	// ErrEmptyCart is returned when there is nothing to sell.
	ErrEmptyCart = errors.New("cart: empty")
	// ErrInvalidQuantity is returned for quantities outside [1, MaxQuantity]
	// and for lines whose amounts do not fit in int64 cents.
	ErrInvalidQuantity = errors.New("cart: quantity must be between 1 and 1000000")
)

// MaxQuantity caps the quantity of one product in a cart, after merging.
const MaxQuantity int64 = 1_000_000

func validQuantity(qty int64) bool {
	return qty >= 1 && qty <= MaxQuantity
}

// mulCents returns price*qty, or false when either is negative or the
// product does not fit in int64.
func mulCents(price, qty int64) (int64, bool) {
	if price < 0 || qty < 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(price), uint64(qty))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

// addCents returns a+b for non-negative amounts, or false on overflow.
func addCents(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// OutOfStockError reports a line requesting more than the current stock.
type OutOfStockError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("cart: product %s out of stock: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// InactiveProductError reports a line for a deactivated product.
type InactiveProductError struct {
	ProductID uuid.UUID
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("cart: product %s is inactive", e.ProductID)
}

// UnknownProductError reports a line whose product does not exist in the store.
type UnknownProductError struct {
	ProductID uuid.UUID
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("cart: product %s not found", e.ProductID)
}

// Total sums line subtotals.
func Total(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.SubtotalCents
	}
	return total
}
