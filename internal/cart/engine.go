// Package cart implements the shopping-cart state model: pure transforms over
// a domain.Cart value (this file), document persistence over a Storage
// (storage.go), and a per-session Coordinator that keeps one canonical copy
// in memory and converges with other coordinators through an events.Bus
// (coordinator.go).
//
// Transforms never mutate their input and take the current time explicitly.
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/talesofaneria/storefront/internal/domain"
)

// NewCart returns an empty cart created at now. Its expiry is fixed at
// now + domain.CartTTL.
func NewCart(now time.Time) domain.Cart {
	ms := domain.Millis(now)
	return domain.Cart{
		Items:     []domain.CartItem{},
		CreatedAt: ms,
		UpdatedAt: ms,
		ExpiresAt: domain.Millis(now.Add(domain.CartTTL)),
	}
}

// Add merges item into c. An existing line with the same (ProductID,
// VariantID) gets the quantities summed and price, stock flag and available
// quantity replaced by the incoming values; otherwise a new line stamped with
// AddedAt = now is appended.
func Add(c domain.Cart, item domain.NewCartItem, now time.Time) domain.Cart {
	out := clone(c)
	for i := range out.Items {
		line := &out.Items[i]
		if line.ProductID == item.ProductID && line.VariantID == item.VariantID {
			line.Quantity += item.Quantity
			line.Price = item.Price
			line.InStock = item.InStock
			line.AvailableQuantity = copyInt(item.AvailableQuantity)
			return out
		}
	}

	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	out.Items = append(out.Items, domain.CartItem{
		ID:                id,
		ProductID:         item.ProductID,
		VariantID:         item.VariantID,
		ProductName:       item.ProductName,
		VariantName:       item.VariantName,
		Price:             item.Price,
		Quantity:          item.Quantity,
		ImageURL:          item.ImageURL,
		InStock:           item.InStock,
		AddedAt:           domain.Millis(now),
		AvailableQuantity: copyInt(item.AvailableQuantity),
	})
	return out
}

// Remove drops the line with the given id. Unknown ids leave c unchanged.
func Remove(c domain.Cart, itemID string) domain.Cart {
	out := clone(c)
	kept := out.Items[:0]
	for _, line := range out.Items {
		if line.ID != itemID {
			kept = append(kept, line)
		}
	}
	out.Items = kept
	return out
}

// UpdateQuantity sets the quantity of the line with the given id. A quantity
// of zero or less removes the line. Unknown ids leave c unchanged.
func UpdateQuantity(c domain.Cart, itemID string, quantity int) domain.Cart {
	if quantity <= 0 {
		return Remove(c, itemID)
	}
	out := clone(c)
	for i := range out.Items {
		if out.Items[i].ID == itemID {
			out.Items[i].Quantity = quantity
			break
		}
	}
	return out
}

// Find returns the line with the given id.
func Find(c domain.Cart, itemID string) (domain.CartItem, bool) {
	for _, line := range c.Items {
		if line.ID == itemID {
			return line, true
		}
	}
	return domain.CartItem{}, false
}

// Total returns the sum of price*quantity over all lines. The sum is done in
// decimal so that e.g. 3 x 0.1 totals exactly 0.3.
func Total(c domain.Cart) float64 {
	sum := decimal.Zero
	for _, line := range c.Items {
		sum = sum.Add(decimal.NewFromFloat(line.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum.InexactFloat64()
}

// ItemCount returns the sum of quantities over all lines.
func ItemCount(c domain.Cart) int {
	n := 0
	for _, line := range c.Items {
		n += line.Quantity
	}
	return n
}

// Summarize derives the cart summary.
func Summarize(c domain.Cart) domain.CartSummary {
	return domain.CartSummary{
		ItemCount:  len(c.Items),
		TotalItems: ItemCount(c),
		Subtotal:   Total(c),
	}
}

// IsExpired reports whether now is at or past the cart's expiry.
func IsExpired(c domain.Cart, now time.Time) bool {
	return domain.Millis(now) >= c.ExpiresAt
}

// Validate reports the lines whose stock snapshot is false. It does not
// consult any upstream.
func Validate(c domain.Cart) domain.CartValidation {
	out := domain.CartValidation{Valid: true, OutOfStockItems: []domain.CartItem{}}
	for _, line := range c.Items {
		if !line.InStock {
			out.Valid = false
			out.OutOfStockItems = append(out.OutOfStockItems, line)
		}
	}
	return out
}

func clone(c domain.Cart) domain.Cart {
	out := c
	if c.Items == nil {
		return out
	}
	out.Items = make([]domain.CartItem, len(c.Items))
	for i, line := range c.Items {
		line.AvailableQuantity = copyInt(line.AvailableQuantity)
		out.Items[i] = line
	}
	return out
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
