package cell

import "errors"

var (
	// ErrNilFunction is the panic value of a read-modify-write operation
	// called with a nil update or accumulator function.
	ErrNilFunction = errors.New("cell: nil update function")

	// ErrInvalidOrdering is the panic value (possibly wrapped) of an access
	// requested with an ordering it cannot have, e.g. an acquire store.
	ErrInvalidOrdering = errors.New("cell: invalid ordering")
)
