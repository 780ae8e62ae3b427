package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrInvalidPrice    = errors.New("catalog: price must be zero or greater")
	ErrInvalidStock    = errors.New("catalog: stock quantity must be zero or greater")
)

// ProductUnavailableError reports a checkout line whose product is missing
// or no longer active.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("catalog: product %s is unavailable", e.ProductID)
}

// InsufficientStockError reports a reservation that asked for more units
// than the product currently has.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("catalog: insufficient stock for %s: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

type Product struct {
	ID          string
	StoreID     string
	Name        string
	Description string
	Price       decimal.Decimal
	StockQty    int
	Active      bool
	UpdatedAt   time.Time
}

func NewProduct(id, storeID, name, description string, price decimal.Decimal, stockQty int) (*Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if stockQty < 0 {
		return nil, ErrInvalidStock
	}
	return &Product{
		ID:          id,
		StoreID:     storeID,
		Name:        name,
		Description: description,
		Price:       price.Round(2),
		StockQty:    stockQty,
		Active:      true,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Purchasable reports whether the product may appear on a new order line.
func (p *Product) Purchasable() bool {
	return p.Active
}
