package cart

import (
	"errors"
	"sort"
)

var ErrEmpty = errors.New("cart: cart is empty")

// Cart is a session-scoped mapping from product ID to requested quantity.
// It is pure data owned by one buyer's session; persistence and stock are
// someone else's problem.
type Cart map[string]int

type Line struct {
	ProductID string
	Quantity  int
}

func New() Cart {
	return make(Cart)
}

// Add increments the product's quantity by one, starting the line at one
// if absent.
func (c Cart) Add(productID string) {
	c[productID]++
}

// Remove drops the product's line entirely.
func (c Cart) Remove(productID string) {
	delete(c, productID)
}

func (c Cart) Quantity(productID string) int {
	return c[productID]
}

func (c Cart) IsEmpty() bool {
	return len(c) == 0
}

// Lines returns the cart contents in ascending product-ID order. Checkout
// iterates in this order so that concurrent checkouts touching overlapping
// products acquire row locks in the same sequence.
func (c Cart) Lines() []Line {
	lines := make([]Line, 0, len(c))
	for productID, qty := range c {
		lines = append(lines, Line{ProductID: productID, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
	return lines
}

// Clone returns an independent copy so a session snapshot cannot be
// mutated behind the caller's back.
func (c Cart) Clone() Cart {
	clone := make(Cart, len(c))
	for productID, qty := range c {
		clone[productID] = qty
	}
	return clone
}
