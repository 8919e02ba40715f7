package checkout

import (
	"errors"
	"fmt"
)

// ErrEmptyCart: checkout attempted with no cart items. No transaction is
// opened.
var ErrEmptyCart = errors.New("cart is empty")

// ErrConflict: the store transaction kept colliding with concurrent writes
// and the retry budget ran out. The whole flow is safe to retry.
var ErrConflict = errors.New("checkout conflicted with concurrent updates")

// ErrTimeout: the attempt exceeded its deadline. Distinct from ErrConflict
// because the caller's retry strategy differs.
var ErrTimeout = errors.New("checkout timed out")

// ErrCartTooLarge: the cart references more distinct products than one
// store transaction can cover.
var ErrCartTooLarge = errors.New("cart exceeds the transaction size limit")

// ProductVanishedError: a cart-referenced product no longer exists (or was
// deactivated) at checkout time. The whole checkout aborts.
type ProductVanishedError struct {
	ProductID string
}

func (e *ProductVanishedError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.ProductID)
}

// InsufficientStockError: requested quantity exceeds available stock. The
// whole checkout aborts; nothing is decremented.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
