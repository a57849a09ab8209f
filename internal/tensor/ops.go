package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{3, 1}, backend)
//	b := tensor.Ones[float32](Shape{3, 5}, backend)
//	c := a.Add(b) // Shape: [3, 5]
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Div(t.raw, other.raw), t.backend)
}

// MatMul performs 2D matrix multiplication: (M, K) @ (K, N) → (M, N).
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements.
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Transpose permutes the tensor's dimensions.
// With no axes, all dimensions are reversed.
//
// Example:
//
//	t := tensor.Randn[float32](Shape{2, 3, 4}, backend)
//	transposed := t.Transpose(2, 0, 1) // Shape: [4, 2, 3]
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// T is a shortcut for 2D transpose.
// Panics if the tensor is not 2D.
func (t *Tensor[T, B]) T() *Tensor[T, B] {
	if len(t.Shape()) != 2 {
		panic("T() only works for 2D tensors")
	}
	return t.Transpose(1, 0)
}

// MulScalar multiplies every element by s.
func (t *Tensor[T, B]) MulScalar(s float64) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, s), t.backend)
}

// AddScalar adds s to every element.
func (t *Tensor[T, B]) AddScalar(s float64) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, s), t.backend)
}

// Exp computes the element-wise exponential.
func (t *Tensor[T, B]) Exp() *Tensor[T, B] {
	return New[T, B](t.backend.Exp(t.raw), t.backend)
}

// Log computes the element-wise natural logarithm.
// Panics on non-positive elements.
func (t *Tensor[T, B]) Log() *Tensor[T, B] {
	return New[T, B](t.backend.Log(t.raw), t.backend)
}

// Sqrt computes the element-wise square root.
func (t *Tensor[T, B]) Sqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Sqrt(t.raw), t.backend)
}

// Sigmoid computes the element-wise logistic function.
func (t *Tensor[T, B]) Sigmoid() *Tensor[T, B] {
	return New[T, B](t.backend.Sigmoid(t.raw), t.backend)
}

// Sum reduces all elements to a 0-D tensor.
func (t *Tensor[T, B]) Sum() *Tensor[T, B] {
	return New[T, B](t.backend.Sum(t.raw), t.backend)
}

// SumDim sums along dim (negative values count from the end).
func (t *Tensor[T, B]) SumDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.SumDim(t.raw, dim, keepDim), t.backend)
}

// MeanDim averages along dim (negative values count from the end).
//
// Example:
//
//	x := tensor.Randn[float32](Shape{2, 3}, backend)
//	m := x.MeanDim(-1, false) // Shape: [2]
func (t *Tensor[T, B]) MeanDim(dim int, keepDim bool) *Tensor[T, B] {
	return New[T, B](t.backend.MeanDim(t.raw, dim, keepDim), t.backend)
}
