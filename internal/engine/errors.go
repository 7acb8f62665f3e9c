package engine

import "errors"

var (
	// ErrNotFound indicates an unknown station, session or alert id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition indicates a command that is not legal from the current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation indicates a malformed input or configuration value.
	ErrValidation = errors.New("validation error")
	// ErrDeliveryFailure indicates a listener failed after a transition committed.
	ErrDeliveryFailure = errors.New("delivery failure")
	// ErrForbidden indicates the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)
