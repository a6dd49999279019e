package cart

import (
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// Cart is a request- or terminal-scoped cart. The zero value is ready to use
// and safe for concurrent use.
type Cart struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

// Add puts qty units of product in the cart, capturing its price and labels.
// Adding a product already present increases its quantity and keeps the
// original snapshot. The cart is left unchanged when the merged quantity
// exceeds MaxQuantity or the amounts overflow.
func (c *Cart) Add(product inventory.Product, qty int64) error {
	if !validQuantity(qty) {
		return ErrInvalidQuantity
	}
	if !product.Active {
		return &InactiveProductError{ProductID: product.ID}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == product.ID {
			return c.setLocked(i, c.items[i].Quantity+qty)
		}
	}
	item := Item{
		ProductID:      product.ID,
		UnitPriceCents: product.PriceCents,
		Name:           product.Name,
		Barcode:        product.Barcode,
	}
	c.items = append(c.items, item)
	if err := c.setLocked(len(c.items)-1, qty); err != nil {
		c.items = c.items[:len(c.items)-1]
		return err
	}
	return nil
}

// setLocked reprices item i at qty, checking the line and cart totals.
func (c *Cart) setLocked(i int, qty int64) error {
	if !validQuantity(qty) {
		return ErrInvalidQuantity
	}
	subtotal, ok := mulCents(c.items[i].UnitPriceCents, qty)
	if !ok {
		return ErrInvalidQuantity
	}
	var total int64
	for j, item := range c.items {
		if j == i {
			continue
		}
		total += item.SubtotalCents
	}
	if _, ok := addCents(total, subtotal); !ok {
		return ErrInvalidQuantity
	}
	c.items[i].Quantity = qty
	c.items[i].SubtotalCents = subtotal
	return nil
}

// SetQuantity replaces the quantity of a product; zero removes it.
func (c *Cart) SetQuantity(productID uuid.UUID, qty int64) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	if qty == 0 {
		c.Remove(productID)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return c.setLocked(i, qty)
		}
	}
	return &UnknownProductError{ProductID: productID}
}

// Remove drops a product from the cart.
func (c *Cart) Remove(productID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	for _, item := range c.items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.items = kept
}

// Items returns a copy of the cart contents in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Total sums the captured subtotals.
func (c *Cart) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, item := range c.items {
		total += item.SubtotalCents
	}
	return total
}

// Clear empties the cart after checkout, successful or not.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}
