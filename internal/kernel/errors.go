package kernel

import "errors"

// Kernel failures. They are returned verbatim (wrapped with batch context) to
// the caller of the solve or multiply that triggered them.
var (
	ErrSingular        = errors.New("kernel: matrix is singular")
	ErrIndexOutOfRange = errors.New("kernel: COO index out of range")
	ErrOperandShape    = errors.New("kernel: operand buffer does not match the declared sizes")
)
