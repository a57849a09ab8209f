// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/parallel"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Every op allocates a fresh result; inputs are never modified, which keeps
// the backend safe to wrap with the autodiff decorator.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend. MatMul splits its rows across
// runtime.NumCPU goroutines.
func New() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.DefaultConfig(),
	}
}

// NewSequential creates a CPU backend that never spawns goroutines.
func NewSequential() *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: parallel.Sequential(),
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

// Reshape returns a tensor with the same data but different shape.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}

	result, err := tensor.NewRaw(newShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	switch t.DType() {
	case tensor.Float32:
		copy(result.AsFloat32(), t.AsFloat32())
	case tensor.Float64:
		copy(result.AsFloat64(), t.AsFloat64())
	}
	return result
}

// Transpose permutes the tensor's dimensions.
// With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}

	result, err := tensor.NewRaw(newShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		transposeData(result.AsFloat32(), t.AsFloat32(), shape, newShape, axes)
	case tensor.Float64:
		transposeData(result.AsFloat64(), t.AsFloat64(), shape, newShape, axes)
	}

	return result
}

// transposeData walks the output in row-major order and gathers from src.
func transposeData[T tensor.DType](dst, src []T, srcShape, dstShape tensor.Shape, axes []int) {
	srcStrides := srcShape.ComputeStrides()
	ndim := len(dstShape)

	// Stride in src for each output dimension.
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		permStrides[i] = srcStrides[ax]
	}

	coords := make([]int, ndim)
	for out := range dst {
		srcIdx := 0
		for d := 0; d < ndim; d++ {
			srcIdx += coords[d] * permStrides[d]
		}
		dst[out] = src[srcIdx]

		for d := ndim - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < dstShape[d] {
				break
			}
			coords[d] = 0
		}
	}
}
