package cart

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// Validate checks items against the latest product state and prices them
// from that state. Lines for the same product are merged first so the stock
// check sees the full requested quantity. Merged quantities above MaxQuantity
// and amounts that overflow int64 cents fail with ErrInvalidQuantity. The
// result is advisory; the stock decrement remains the authority.
func Validate(items []Item, products map[uuid.UUID]inventory.Product, allowNegative bool) ([]Line, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	order := make([]uuid.UUID, 0, len(items))
	qty := make(map[uuid.UUID]int64, len(items))
	for _, item := range items {
		if !validQuantity(item.Quantity) {
			return nil, ErrInvalidQuantity
		}
		merged, seen := qty[item.ProductID]
		if !seen {
			order = append(order, item.ProductID)
		}
		if item.Quantity > MaxQuantity-merged {
			return nil, ErrInvalidQuantity
		}
		qty[item.ProductID] = merged + item.Quantity
	}

	var total int64
	lines := make([]Line, 0, len(order))
	for _, id := range order {
		product, ok := products[id]
		if !ok {
			return nil, &UnknownProductError{ProductID: id}
		}
		if !product.Active {
			return nil, &InactiveProductError{ProductID: id}
		}
		requested := qty[id]
		if !allowNegative && requested > product.StockQty {
			return nil, &OutOfStockError{ProductID: id, Requested: requested, Available: product.StockQty}
		}
		subtotal, ok := mulCents(product.PriceCents, requested)
		if !ok {
			return nil, ErrInvalidQuantity
		}
		if total, ok = addCents(total, subtotal); !ok {
			return nil, ErrInvalidQuantity
		}
		lines = append(lines, Line{
			ProductID:      id,
			Quantity:       requested,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  subtotal,
			Name:           product.Name,
			Barcode:        product.Barcode,
		})
	}
	return lines, nil
}

// ProductIDs lists the distinct products referenced by items.
func ProductIDs(items []Item) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
