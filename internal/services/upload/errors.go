package upload

import "errors"

var (
	// ErrValidation marks malformed or disallowed input, rejected before
	// any state mutation.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream marks a failed or timed-out call to the object store or
	// record store. Retryable by the caller.
	ErrUpstream = errors.New("upstream dependency failed")
)
