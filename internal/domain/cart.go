// Package domain defines the value types shared by the cart engine, the
// catalog cache, and the persistence layer. Cart values are plain data: all
// behavior lives in package cart, all storage in package repo.
package domain

import "time"

// CartTTL is the fixed lifetime of a cart, measured from its creation.
// Mutations never extend it.
const CartTTL = 7 * 24 * time.Hour

// Cart is the persisted cart document. Timestamps are epoch milliseconds so
// the JSON form stays compatible with documents written by browser clients.
type Cart struct {
	Items     []CartItem `json:"items"`
	CreatedAt int64      `json:"createdAt"`
	UpdatedAt int64      `json:"updatedAt"`
	ExpiresAt int64      `json:"expiresAt"`
}

// CartItem is one product+variant line. Two lines are the same line iff both
// ProductID and VariantID match.
//
// Price is a decimal amount in the currency unit (not cents). InStock and
// AvailableQuantity are snapshots taken when the line was last added.
type CartItem struct {
	ID                string  `json:"id"`
	ProductID         string  `json:"productId"`
	VariantID         string  `json:"variantId"`
	ProductName       string  `json:"productName"`
	VariantName       string  `json:"variantName"`
	Price             float64 `json:"price"`
	Quantity          int     `json:"quantity"`
	ImageURL          string  `json:"imageUrl"`
	InStock           bool    `json:"inStock"`
	AddedAt           int64   `json:"addedAt"`
	AvailableQuantity *int    `json:"availableQuantity,omitempty"`
}

// NewCartItem is the input of an add operation: a CartItem without AddedAt.
// An empty ID is filled in by the engine.
type NewCartItem struct {
	ID                string  `json:"id,omitempty"`
	ProductID         string  `json:"productId"`
	VariantID         string  `json:"variantId"`
	ProductName       string  `json:"productName"`
	VariantName       string  `json:"variantName"`
	Price             float64 `json:"price"`
	Quantity          int     `json:"quantity"`
	ImageURL          string  `json:"imageUrl"`
	InStock           bool    `json:"inStock"`
	AvailableQuantity *int    `json:"availableQuantity,omitempty"`
}

// CartSummary is derived from a Cart on every read and never stored.
type CartSummary struct {
	ItemCount  int     `json:"itemCount"`
	TotalItems int     `json:"totalItems"`
	Subtotal   float64 `json:"subtotal"`
}

// CartValidation reports lines whose stock snapshot says they are unavailable.
type CartValidation struct {
	Valid           bool       `json:"valid"`
	OutOfStockItems []CartItem `json:"outOfStockItems"`
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 { return t.UnixMilli() }
