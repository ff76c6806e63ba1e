package cpu

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Reshape returns a tensor with the same data but different shape.
// Reshape is a view operation: the result shares the input buffer.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if err := ValidatePermutation(axes, ndim); err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	// Compute new shape
	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	// Source stride for each output axis.
	srcStrides := shape.ComputeStrides()
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		permStrides[i] = srcStrides[ax]
	}
	gather(result, t, newShape, permStrides, cpu.par)

	return result
}

// Expand broadcasts the tensor to a new shape (NumPy alignment from the right).
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()

	if len(newShape) < len(xShape) {
		panic(fmt.Sprintf("expand: new shape %v has fewer dimensions than input shape %v",
			newShape, xShape))
	}

	offset := len(newShape) - len(xShape)
	for i, xDim := range xShape {
		if newDim := newShape[offset+i]; xDim != 1 && xDim != newDim {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, xDim, newDim))
		}
	}

	result, err := tensor.NewRaw(newShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("expand: %v", err))
	}

	gather(result, x, newShape, broadcastStrides(xShape, newShape), cpu.par)
	return result
}

// SumLeading sums x over its first n axes: [d0, ..., dn-1, rest...] -> [rest...].
func (cpu *CPUBackend) SumLeading(x *tensor.RawTensor, n int) *tensor.RawTensor {
	shape := x.Shape()
	if n < 0 || n > len(shape) {
		panic(fmt.Sprintf("sumLeading: cannot reduce %d axes of %v", n, shape))
	}
	if n == 0 {
		return x
	}

	outShape := shape[n:].Clone()
	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumLeading: %v", err))
	}

	inner := outShape.NumElements()
	switch x.DType() {
	case tensor.Float32:
		sumBlocks(result.AsFloat32(), x.AsFloat32(), inner)
	case tensor.Float64:
		sumBlocks(result.AsFloat64(), x.AsFloat64(), inner)
	case tensor.Int32:
		sumBlocks(result.AsInt32(), x.AsInt32(), inner)
	case tensor.Int64:
		sumBlocks(result.AsInt64(), x.AsInt64(), inner)
	case tensor.Complex64:
		sumBlocks(result.AsComplex64(), x.AsComplex64(), inner)
	case tensor.Complex128:
		sumBlocks(result.AsComplex128(), x.AsComplex128(), inner)
	default:
		panic(fmt.Sprintf("sumLeading: unsupported dtype %s", x.DType()))
	}
	return result
}

// ValidatePermutation checks that axes is a permutation of [0, ndim).
func ValidatePermutation(axes []int, ndim int) error {
	if len(axes) != ndim {
		return fmt.Errorf("axes length %d != ndim %d", len(axes), ndim)
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			return fmt.Errorf("invalid axis %d for %dD tensor", ax, ndim)
		}
		if seen[ax] {
			return fmt.Errorf("duplicate axis %d", ax)
		}
		seen[ax] = true
	}
	return nil
}

// broadcastStrides computes strides for broadcasting inShape to outShape.
// Dimensions of size 1 and padded leading dimensions get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(inShape)
	origStrides := inShape.ComputeStrides()

	for i := range outShape {
		inIdx := i - offset
		if inIdx < 0 || inShape[inIdx] == 1 {
			continue
		}
		strides[i] = origStrides[inIdx]
	}
	return strides
}

// gather fills dst (shaped outShape) by reading src elements at
// Σ coord[i]*srcStrides[i]. Works on raw bytes, so it is dtype-agnostic.
func gather(dst, src *tensor.RawTensor, outShape tensor.Shape, srcStrides []int, cfg parallel.Config) {
	elemSize := src.DType().Size()
	outStrides := outShape.ComputeStrides()
	dstData, srcData := dst.Data(), src.Data()

	parallel.For(outShape.NumElements(), func(o int) {
		srcIdx := 0
		rem := o
		for d, stride := range outStrides {
			srcIdx += (rem / stride) * srcStrides[d]
			rem %= stride
		}
		copy(dstData[o*elemSize:(o+1)*elemSize], srcData[srcIdx*elemSize:(srcIdx+1)*elemSize])
	}, cfg)
}

func sumBlocks[T tensor.DType](dst, src []T, inner int) {
	for i, v := range src {
		dst[i%inner] += v
	}
}
