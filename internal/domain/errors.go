package domain

import "errors"

// ErrInvalidID and related errors describe validation failures.
var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidTitle     = errors.New("invalid title")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidVerb      = errors.New("invalid verb")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)

// ErrUnauthenticated reports a missing, unknown, or expired session.
var ErrUnauthenticated = errors.New("unauthenticated")
