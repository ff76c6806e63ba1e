package cpu

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/tensor"
)

// Cast converts the tensor to a different data type.
//
// Real to complex conversions set the imaginary part to zero; complex to real
// conversions keep the real part. Float to integer conversions truncate.
func (cpu *CPUBackend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	// No-op if same dtype
	if x.DType() == dtype {
		return x
	}

	result, err := tensor.NewRaw(x.Shape(), dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cast: %v", err))
	}

	values := widen(x)
	switch dtype {
	case tensor.Float32:
		narrowReal(result.AsFloat32(), values)
	case tensor.Float64:
		narrowReal(result.AsFloat64(), values)
	case tensor.Int32:
		narrowReal(result.AsInt32(), values)
	case tensor.Int64:
		narrowReal(result.AsInt64(), values)
	case tensor.Complex64:
		dst := result.AsComplex64()
		for i, v := range values {
			dst[i] = complex64(v)
		}
	case tensor.Complex128:
		copy(result.AsComplex128(), values)
	default:
		panic(fmt.Sprintf("cast: unsupported target dtype %v", dtype))
	}

	return result
}

// widen reads every element of x as complex128.
func widen(x *tensor.RawTensor) []complex128 {
	out := make([]complex128, x.NumElements())
	switch x.DType() {
	case tensor.Float32:
		widenReal(out, x.AsFloat32())
	case tensor.Float64:
		widenReal(out, x.AsFloat64())
	case tensor.Int32:
		widenReal(out, x.AsInt32())
	case tensor.Int64:
		widenReal(out, x.AsInt64())
	case tensor.Complex64:
		for i, v := range x.AsComplex64() {
			out[i] = complex128(v)
		}
	case tensor.Complex128:
		copy(out, x.AsComplex128())
	default:
		panic(fmt.Sprintf("cast: unsupported source dtype %v", x.DType()))
	}
	return out
}

type realNumber interface {
	~float32 | ~float64 | ~int32 | ~int64
}

func widenReal[T realNumber](dst []complex128, src []T) {
	for i, v := range src {
		dst[i] = complex(float64(v), 0)
	}
}

func narrowReal[T realNumber](dst []T, src []complex128) {
	for i, v := range src {
		dst[i] = T(real(v))
	}
}
