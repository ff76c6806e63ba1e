package ops

import "github.com/born-ml/spsolve/internal/tensor"

// InversePermutation returns the permutation that undoes axes.
func InversePermutation(axes []int) []int {
	inverse := make([]int, len(axes))
	for i, ax := range axes {
		inverse[ax] = i
	}
	return inverse
}

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[2,3,4] -> c[2,3,4]  (a was broadcast along dims 0 and 2)
//	Backward: grad_c[2,3,4] -> grad_a[3,1]  (sum along dims 0 and 2)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	// NumPy broadcasting aligns shapes from the right: leading extra dims are summed away.
	if extra := len(gradShape) - len(targetShape); extra > 0 {
		grad = backend.SumLeading(grad, extra)
	}

	// Sum along dimensions where the target is 1 by moving each to the front.
	for i, dim := range targetShape {
		if dim != 1 || grad.Shape()[i] == 1 {
			continue
		}
		perm := moveToFront(len(targetShape), i)
		summed := backend.SumLeading(backend.Transpose(grad, perm...), 1)
		grad = backend.Reshape(summed, grad.Shape().Remove(i).Insert(i, 1))
	}

	if !grad.Shape().Equal(targetShape) {
		grad = backend.Reshape(grad, targetShape)
	}
	return grad
}

// moveToFront returns the permutation of rank axes that moves axis to position 0.
func moveToFront(rank, axis int) []int {
	perm := make([]int, 0, rank)
	perm = append(perm, axis)
	for i := 0; i < rank; i++ {
		if i != axis {
			perm = append(perm, i)
		}
	}
	return perm
}
