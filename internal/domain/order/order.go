package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrNoItems         = errors.New("order: an order must have at least one item")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
)

type Order struct {
	ID        string
	BuyerID   string
	CreatedAt time.Time
	Items     []Item
}

// Item is an immutable order line. StoreID and UnitPrice are denormalized
// at purchase time so historical orders survive later product or store
// mutation.
type Item struct {
	OrderID     string
	ProductID   string
	ProductName string
	StoreID     string
	StoreName   string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func New(id, buyerID string, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	o := &Order{
		ID:        id,
		BuyerID:   buyerID,
		CreatedAt: time.Now().UTC(),
		Items:     make([]Item, len(items)),
	}
	copy(o.Items, items)
	for i := range o.Items {
		o.Items[i].OrderID = id
	}
	return o, nil
}

func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (o *Order) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
