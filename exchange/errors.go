package exchange

import (
	"errors"
	"fmt"
)

// Recoverable error kinds. The telegram boundary is the only place
// that turns these into user-facing text.
var (
	// ErrUnavailable means the upstream venue could not produce a
	// ticker. Callers must not distinguish further.
	ErrUnavailable = errors.New("price feed unavailable")

	ErrUnknownSymbol    = errors.New("unknown currency symbol")
	ErrDuplicateSymbol  = errors.New("currency already configured")
	ErrBadAmount        = errors.New("amount must be a positive number")
	ErrEmptyDestination = errors.New("destination address is empty")
	ErrBadProof         = errors.New("proof of payment is empty")

	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
)

// ConfigError is fatal: the process must refuse to start.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}
