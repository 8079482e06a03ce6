package order

import "errors"

// Error taxonomy for the lifecycle and query operations. Handlers map these
// to HTTP statuses; callers distinguish "doesn't exist" from "exists but
// can't do that" via ErrNotFound vs ErrInvalidTransition.
var (
	ErrValidation        = errors.New("invalid order input")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("actor not authorized for this restaurant")
)
