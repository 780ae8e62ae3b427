package checkout

import (
	"fmt"
	"strings"

	"github.com/mossvale/marketplace/internal/domain/identity"
	"github.com/mossvale/marketplace/internal/domain/order"
)

// ComposeInvoice renders the order confirmation: one line per item with
// product, store, quantity, unit price and line total, plus a grand total.
func ComposeInvoice(buyer *identity.User, o *order.Order) (subject, body string) {
	subject = fmt.Sprintf("Invoice for Order #%s", o.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", buyer.Username)
	fmt.Fprintf(&b, "Thanks for your purchase. Here is your invoice for Order #%s:\n\n", o.ID)

	for _, item := range o.Items {
		fmt.Fprintf(&b, "- %s (Store: %s) x %d @ %s = %s\n",
			item.ProductName,
			item.StoreName,
			item.Quantity,
			item.UnitPrice.StringFixed(2),
			item.LineTotal().StringFixed(2),
		)
	}

	fmt.Fprintf(&b, "\nTotal: %s\n\nRegards,\nMossvale Marketplace\n", o.GrandTotal().StringFixed(2))
	return subject, b.String()
}
