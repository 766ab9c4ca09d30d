package order

import (
	"errors"
	"fmt"

	"github.com/kcmvp/retail/constraint"
	"github.com/kcmvp/retail/entity"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrReferenceNotFound = errors.New("customer or product not found")
	ErrInsufficientStock = errors.New("insufficient stock available")
	// ErrStockUpdateFailed means the order exists but its stock was never taken.
	ErrStockUpdateFailed = errors.New("stock update failed")
)

var _, positive = constraint.Gt(0)()

// PendingError reports a failure after the order was committed. The order stays Submitted and
// needs stock reconciliation.
type PendingError struct {
	Order entity.Order
	Err   error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("order placed, inventory pending: %v", e.Err)
}

func (e *PendingError) Unwrap() error {
	return e.Err
}

// IsPending reports whether err carries a committed order.
func IsPending(err error) (entity.Order, bool) {
	var pe *PendingError
	if errors.As(err, &pe) {
		return pe.Order, true
	}
	return entity.Order{}, false
}
