package hlo

import "github.com/pkg/errors"

// ErrUnknownTarget is returned by Compile when a custom call names a target
// missing from the target table.
var ErrUnknownTarget = errors.New("hlo: unknown custom-call target")
