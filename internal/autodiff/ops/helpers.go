package ops

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// Sum away leading dimensions the target never had.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}

	// Sum along dimensions where the target was broadcast from 1.
	shape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && shape[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		panic(fmt.Sprintf("reduceBroadcast: cannot reduce %v to %v", grad.Shape(), targetShape))
	}

	return result
}

// expandTo broadcasts grad to shape by adding it to a zero tensor.
func expandTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	zeros, err := tensor.NewRaw(shape, grad.DType(), grad.Device())
	if err != nil {
		panic(fmt.Sprintf("expandTo: %v", err))
	}
	return backend.Add(zeros, grad)
}
