// Package systems implements the per-frame pressure core: the dense agent store,
// the spatial grid used to find agents near an event, and event propagation.
package systems

import "errors"

// Checked precondition failures. The core has no recoverable runtime errors;
// these replace what would otherwise be out-of-bounds reads.
var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrInvalidGrid      = errors.New("invalid grid configuration")
)
