package domain

import "errors"

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// ErrUnsupportedChannel means no sender is registered for a channel. Terminal for the attempt.
	ErrUnsupportedChannel = errors.New("unsupported channel")
	// ErrTransportFailure means a sender failed; the dispatch pass is aborted and retried.
	ErrTransportFailure = errors.New("transport failure")
)
