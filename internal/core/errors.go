package core

import (
	"errors"
	"fmt"
)

// Framework errors.
//
// ErrConfiguration is the root of every configuration error: invalid
// batch-axis combinations, more than one batch dimension, differentiation
// requested against structural operands. They are detected when a call is
// constructed and are never retried.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrUnregistered  = errors.New("primitive not registered")
	ErrFrozen        = errors.New("registry is frozen")
)

// Configf formats a configuration error wrapping ErrConfiguration.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
