package orders

import "errors"

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotInOrder = errors.New("product not found in order")
	ErrInsufficientStock = errors.New("insufficient product quantity")
	ErrInvalidStatus     = errors.New("invalid status provided")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrAlreadyCancelled  = errors.New("order is already cancelled")
	ErrForbidden         = errors.New("not authorized for this order")
)
