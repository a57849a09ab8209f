package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
// An empty shape describes a scalar.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// stride[i] is the product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// NormalizeDim resolves a possibly negative dimension index against rank ndim.
// Returns an error if the dimension is out of range.
func NormalizeDim(dim, ndim int) (int, error) {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		return 0, fmt.Errorf("dimension %d out of range for %dD tensor", dim, ndim)
	}
	return dim, nil
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; two dimensions are compatible when they
// are equal or one of them is 1. Missing leading dimensions are treated as 1.
//
// Returns the broadcasted shape, whether broadcasting is needed, and an error
// if the shapes are incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aDim := 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		bDim := 1
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, fmt.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}
