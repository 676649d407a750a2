package analytics

import "errors"

var (
	// ErrNotFound is returned when a requested user has no reconciled usage record
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable is returned when the directory cannot be reached
	// or answers with a non-success status
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInvalidArgument is returned for out-of-range query parameters
	ErrInvalidArgument = errors.New("invalid argument")
)
