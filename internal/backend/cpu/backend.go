// Package cpu implements the eager CPU backend used for layout changes,
// element-type conversion and the element-wise arithmetic of derivative rules.
package cpu

import (
	"fmt"

	"github.com/born-ml/spsolve/internal/parallel"
	"github.com/born-ml/spsolve/internal/tensor"
)

// Verify that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with the default parallel configuration.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with an explicit parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, addKind)
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, subKind)
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, mulKind)
}

// Neg returns -x.
func (cpu *CPUBackend) Neg(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("neg: failed to create result tensor: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		negate(result.AsFloat32(), x.AsFloat32())
	case tensor.Float64:
		negate(result.AsFloat64(), x.AsFloat64())
	case tensor.Int32:
		negate(result.AsInt32(), x.AsInt32())
	case tensor.Int64:
		negate(result.AsInt64(), x.AsInt64())
	case tensor.Complex64:
		negate(result.AsComplex64(), x.AsComplex64())
	case tensor.Complex128:
		negate(result.AsComplex128(), x.AsComplex128())
	default:
		panic(fmt.Sprintf("neg: unsupported dtype %s", x.DType()))
	}
	return result
}

type binaryKind int

const (
	addKind binaryKind = iota
	subKind
	mulKind
)

// binary broadcasts both operands to the common shape and applies op element-wise.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, kind binaryKind) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	if needsBroadcast {
		a = cpu.Expand(a, outShape)
		b = cpu.Expand(b, outShape)
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch a.DType() {
	case tensor.Float32:
		elementwise(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), kind)
	case tensor.Float64:
		elementwise(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), kind)
	case tensor.Int32:
		elementwise(result.AsInt32(), a.AsInt32(), b.AsInt32(), kind)
	case tensor.Int64:
		elementwise(result.AsInt64(), a.AsInt64(), b.AsInt64(), kind)
	case tensor.Complex64:
		elementwise(result.AsComplex64(), a.AsComplex64(), b.AsComplex64(), kind)
	case tensor.Complex128:
		elementwise(result.AsComplex128(), a.AsComplex128(), b.AsComplex128(), kind)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}
	return result
}

func elementwise[T tensor.DType](dst, a, b []T, kind binaryKind) {
	switch kind {
	case addKind:
		for i := range dst {
			dst[i] = a[i] + b[i]
		}
	case subKind:
		for i := range dst {
			dst[i] = a[i] - b[i]
		}
	case mulKind:
		for i := range dst {
			dst[i] = a[i] * b[i]
		}
	}
}

func negate[T tensor.DType](dst, src []T) {
	for i, v := range src {
		dst[i] = -v
	}
}
