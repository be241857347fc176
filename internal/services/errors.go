// Package services defines the storefront's business operations: the
// per-session cart registry and the cached catalog lookups.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Cart-related errors.
var (
	// ErrInvalidItem is returned when an add request is missing its product
	// or variant id, has a non-positive quantity, or a negative price.
	ErrInvalidItem = errors.New("invalid cart item")

	// ErrInvalidQuantity is returned when a requested quantity exceeds the
	// per-request cap.
	ErrInvalidQuantity = errors.New("quantity exceeds the allowed maximum")

	// ErrEmptyQuery is returned by product search for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")
)
