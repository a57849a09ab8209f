package cpu

import "github.com/born-ml/maskrefine/internal/tensor"

// broadcastStrides computes strides for reading inShape as if it had outShape.
// Broadcast (size 1) and padded leading dimensions get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	offset := outDim - len(inShape)
	origStrides := inShape.ComputeStrides()

	strides := make([]int, outDim)
	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		if inIdx < 0 || inShape[inIdx] == 1 {
			continue
		}
		strides[i] = origStrides[inIdx]
	}
	return strides
}

// binaryBroadcast applies f element-wise over the broadcast of a and b.
func binaryBroadcast[T tensor.DType](dst, a, b []T, aShape, bShape, outShape tensor.Shape, f func(x, y T) T) {
	if aShape.Equal(bShape) {
		for i := range dst {
			dst[i] = f(a[i], b[i])
		}
		return
	}

	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	ndim := len(outShape)
	coords := make([]int, ndim)

	for i := range dst {
		ai, bi := 0, 0
		for d := 0; d < ndim; d++ {
			ai += coords[d] * aStrides[d]
			bi += coords[d] * bStrides[d]
		}
		dst[i] = f(a[ai], b[bi])

		for d := ndim - 1; d >= 0; d-- {
			coords[d]++
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
		}
	}
}
