package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable marks a persistence backend that is unset or unreachable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrPhaseInput is returned when a pipeline phase runs without the output of the phase it depends on.
	ErrPhaseInput = errors.New("missing phase input")
)
