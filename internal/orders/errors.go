package orders

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrInvalidQty        = errors.New("quantity must be positive")
	ErrNoLines           = errors.New("order needs at least one line")
	ErrCreditBlocked     = errors.New("client is credit blocked")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrHasInvoice        = errors.New("order has a non-canceled invoice")
)

// BadRequest reports whether err maps to a caller mistake (HTTP 400) rather
// than a missing entity or an internal failure.
func BadRequest(err error) bool {
	for _, e := range []error{ErrInvalidQty, ErrNoLines, ErrCreditBlocked, ErrInvalidTransition, ErrHasInvoice} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func NotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrClientNotFound)
}
