package domain

import "errors"

// Failure taxonomy for order assembly. Transient failures are expected to
// succeed on a later attempt and convert the request into a PendingOrder;
// permanent failures reject the request outright.
var (
	ErrBuyerNotFound        = errors.New("buyer not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidRequest       = errors.New("invalid order request")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	ErrPersistenceFailure   = errors.New("persistence failure")

	// ErrOrderDeferred wraps a transient cause once the request has been
	// stashed for reprocessing: the caller is told "accepted for later
	// processing", not "succeeded".
	ErrOrderDeferred = errors.New("order deferred for later processing")

	// ErrOrderNotFound is returned on aggregate lookups.
	ErrOrderNotFound = errors.New("order not found")
)

// IsTransient reports whether retrying alone could fix the failure.
// Insufficient stock is deliberately permanent: waiting will not conjure
// stock, and rejected requests can simply be resubmitted.
func IsTransient(err error) bool {
	return errors.Is(err, ErrDirectoryUnavailable) || errors.Is(err, ErrPersistenceFailure)
}
