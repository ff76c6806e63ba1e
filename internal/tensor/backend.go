package tensor

// Backend defines the eager operations the framework needs from a compute
// backend: layout changes, element-type conversion and the element-wise
// arithmetic used by derivative rules and gradient accumulation.
//
// Implementations panic on programming errors (mismatched shapes, invalid
// axes); callers validate user input before reaching the backend.
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Element-wise unary operations
	Neg(x *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Expand(x *RawTensor, shape Shape) *RawTensor // broadcast to shape
	SumLeading(x *RawTensor, n int) *RawTensor   // sum away the first n axes

	// Type conversion
	Cast(x *RawTensor, dtype DataType) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
