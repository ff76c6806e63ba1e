// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/spsolve/internal/backend/cpu"
	"github.com/born-ml/spsolve/tensor"
)

// TestBackendInterface verifies that cpu.CPUBackend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.CPUBackend)(nil)
}

// TestRawTensorAPI verifies the RawTensor alias exposes the expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Complex128, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if shape := raw.Shape(); !shape.Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", shape)
	}
	if dtype := raw.DType(); dtype != tensor.Complex128 {
		t.Errorf("DType() = %v, want complex128", dtype)
	}
	if device := raw.Device(); device != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", device)
	}
	if n := len(raw.AsComplex128()); n != 6 {
		t.Errorf("len(AsComplex128()) = %d, want 6", n)
	}
}

func TestFromSlice(t *testing.T) {
	raw, err := tensor.FromSlice([]float64{8, 45, -3, 3, 19}, tensor.Shape{5})
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	got := tensor.ToSlice[float64](raw)
	if len(got) != 5 || got[1] != 45 {
		t.Errorf("ToSlice() = %v", got)
	}

	if _, err := tensor.FromSlice([]float64{1, 2}, tensor.Shape{3}); err == nil {
		t.Error("FromSlice with wrong element count should fail")
	}
}

func TestConstructors(t *testing.T) {
	ones, err := tensor.Ones(tensor.Shape{2}, tensor.Complex64)
	if err != nil {
		t.Fatalf("Ones failed: %v", err)
	}
	if got := ones.AsComplex64(); got[0] != 1 || got[1] != 1 {
		t.Errorf("Ones() = %v", got)
	}

	zeros, err := tensor.Zeros(tensor.Shape{3}, tensor.Int32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	if got := zeros.AsInt32(); got[2] != 0 {
		t.Errorf("Zeros() = %v", got)
	}

	s := tensor.Scalar(int32(7))
	if len(s.Shape()) != 0 || s.AsInt32()[0] != 7 {
		t.Errorf("Scalar() = %v %v", s.Shape(), s.AsInt32())
	}

	spec := s.Spec()
	if spec.String() != "int32[]" {
		t.Errorf("Spec().String() = %q", spec.String())
	}
}
