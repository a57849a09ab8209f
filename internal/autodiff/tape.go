package autodiff

import (
	"github.com/born-ml/maskrefine/internal/autodiff/ops"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode automatic differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	gradients := tape.Backward(loss, outputGrad, backend)
type GradientTape struct {
	operations []ops.Operation // Recorded operations (in execution order)
	recording  bool
}

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear resets the tape, removing all recorded operations.
// Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients of output with respect to every tensor that
// contributed to it, walking the tape in reverse.
//
// Gradients are accumulated when the same tensor feeds several operations.
// Operations whose output received no gradient are skipped.
//
// Returns a map from RawTensor to its accumulated gradient.
func (t *GradientTape) Backward(
	output, outputGrad *tensor.RawTensor,
	backend tensor.Backend,
) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	grads[output] = outputGrad

	// Gradient ops must not land on the tape.
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}

		inputGrads := op.Backward(outGrad, backend)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}

	return grads
}
