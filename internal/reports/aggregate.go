// Package reports reduces sale collections into period summaries.
package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/checkout"
	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// Summary is the aggregate of the sales inside a window. Amounts are cents.
type Summary struct {
	From            time.Time                        `json:"from"`
	To              time.Time                        `json:"to"`
	TotalCents      int64                            `json:"total_cents"`
	Count           int                              `json:"count"`
	ByPaymentMethod map[checkout.PaymentMethod]int64 `json:"by_payment_method"`
	CostCents       int64                            `json:"cost_cents"`
	ProfitCents     int64                            `json:"profit_cents"`
	MarginPercent   decimal.Decimal                  `json:"margin_percent"`
}

var hundred = decimal.NewFromInt(100)

// Aggregate sums the sales created inside [from, to], comparing instants.
// Cost is each product's current unit cost times the quantity sold, so past
// margins move when a cost is edited. Products missing from costs count as
// zero cost. Margin is 0 when there is no revenue.
func Aggregate(sales []checkout.Sale, costs map[uuid.UUID]int64, from, to time.Time) Summary {
	sum := Summary{
		From:            from,
		To:              to,
		ByPaymentMethod: map[checkout.PaymentMethod]int64{},
		MarginPercent:   decimal.Zero,
	}
	window := shared.Window{From: from, To: to}
	for _, sale := range sales {
		if !window.Contains(sale.CreatedAt) {
			continue
		}
		sum.Count++
		sum.TotalCents += sale.TotalCents
		sum.ByPaymentMethod[sale.PaymentMethod] += sale.TotalCents
		for _, item := range sale.Items {
			sum.CostCents += costs[item.ProductID] * item.Quantity
		}
	}
	sum.ProfitCents = sum.TotalCents - sum.CostCents
	if sum.TotalCents != 0 {
		sum.MarginPercent = decimal.NewFromInt(sum.ProfitCents).
			Div(decimal.NewFromInt(sum.TotalCents)).
			Mul(hundred).
			Round(2)
	}
	return sum
}

// CashTotal is the cash-tendered revenue of a summary.
func (s Summary) CashTotal() int64 {
	return s.ByPaymentMethod[checkout.PaymentCash]
}
