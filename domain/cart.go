package domain

import "strings"

// TempLineIDPrefix marks a client-assigned cart line ID that has not yet
// been reconciled with a server-assigned one.
const TempLineIDPrefix = "tmp-"

// CartLine is one product-and-quantity entry within the cart.
// Quantity is always >= 1; a line reduced to zero is removed, never stored.
type CartLine struct {
	ID       string  `json:"cartLineId"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Pending reports whether the line still carries a client-assigned temporary
// ID, i.e. the add has not yet been confirmed by the server.
func (l CartLine) Pending() bool {
	return strings.HasPrefix(l.ID, TempLineIDPrefix)
}

// Cart is an ordered collection of lines, unique by line ID.
// Subtotal and ItemCount are always recomputed, never stored.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// ItemCount is the total quantity across all lines.
func (c Cart) ItemCount() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// Subtotal sums line price x quantity over the snapshot prices.
// An empty cart yields a zero Money with an unset currency.
func (c Cart) Subtotal() Money {
	var sum Money
	for i, l := range c.Lines {
		lineTotal := l.Product.Price.Mul(l.Quantity)
		if i == 0 {
			sum = lineTotal
			continue
		}
		added, err := sum.Add(lineTotal)
		if err != nil {
			// Mixed currencies within one cart indicate a server-side bug;
			// keep the running sum rather than panic in a derived getter.
			continue
		}
		sum = added
	}
	return sum
}

// Line returns the line with the given ID, if present.
func (c Cart) Line(id string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartLine{}, false
}
