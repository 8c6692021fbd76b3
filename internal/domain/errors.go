package domain

import "errors"

var (
	// ErrMalformedResponse marks an upstream reply that does not carry the fields we rely on.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotConfigured is returned by adapters missing credentials or endpoints.
	ErrNotConfigured = errors.New("not configured")
)
