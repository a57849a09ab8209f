package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - CPU: pure Go (internal/backend/cpu)
//   - Autodiff: decorator recording ops on a gradient tape (internal/autodiff)
//
// Backends panic on contract violations (incompatible shapes, bad dims).
// Callers that need errors validate before calling.
type Backend interface {
	// Element-wise binary operations with broadcasting
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Scalar operations (element-wise with scalar)
	MulScalar(x *RawTensor, scalar float64) *RawTensor
	AddScalar(x *RawTensor, scalar float64) *RawTensor

	// Math operations (element-wise)
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor

	// Reduction operations
	Sum(x *RawTensor) *RawTensor                            // total sum (scalar result)
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dimension
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dimension

	// Metadata
	Name() string
	Device() Device
}
