package cpu

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// Sum reduces all elements to a 0-D tensor.
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		var s float32
		for _, v := range x.AsFloat32() {
			s += v
		}
		result.AsFloat32()[0] = s
	case tensor.Float64:
		var s float64
		for _, v := range x.AsFloat64() {
			s += v
		}
		result.AsFloat64()[0] = s
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
//
// Example:
//
//	y := backend.SumDim(x, -1, true)   // [2, 3, 4] -> [2, 3, 1]
//	z := backend.SumDim(x, -1, false)  // [2, 3, 4] -> [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	result, err := tensor.NewRaw(ReducedShape(shape, dim, keepDim), x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		sumDim(x.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDim(x.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// MeanDim computes the mean of tensor elements along the specified dimension.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("meandim: %v", err))
	}

	sum := cpu.SumDim(x, d, keepDim)
	n := float64(shape[d])
	for i := 0; i < sum.NumElements(); i++ {
		sum.SetAt64(i, sum.At64(i)/n)
	}
	return sum
}

// ReducedShape returns shape with dim removed, or set to 1 when keepDim is true.
func ReducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, s := range shape {
		if i != dim {
			out = append(out, s)
		}
	}
	return out
}

// sumDim views data as [outer, size, inner] and sums the middle axis.
func sumDim[T tensor.DType](data, result []T, shape tensor.Shape, dim int) {
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	size := shape[dim]

	for o := 0; o < outer; o++ {
		base := o * size * inner
		dst := result[o*inner : (o+1)*inner]
		for s := 0; s < size; s++ {
			src := data[base+s*inner : base+(s+1)*inner]
			for i, v := range src {
				dst[i] += v
			}
		}
	}
}
