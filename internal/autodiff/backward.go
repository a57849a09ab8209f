package autodiff

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// BackwardCapable is an interface for backends that support backward pass.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable interface).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of t with respect to every recorded input.
//
// The output gradient is seeded with ones, so for a scalar loss the result
// holds dLoss/dx for each tensor x on the tape.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2}, backend)
//	y := x.Mul(x) // y = x²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	outputGrad, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("backward: failed to create output gradient: %v", err))
	}
	for i := 0; i < outputGrad.NumElements(); i++ {
		outputGrad.SetAt64(i, 1)
	}

	return tape.Backward(t.Raw(), outputGrad, backend)
}
