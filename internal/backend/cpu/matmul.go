package cpu

import (
	"fmt"

	"github.com/born-ml/maskrefine/internal/parallel"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("matmul: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result, err := tensor.NewRaw(tensor.Shape{m, n}, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("matmul: failed to create result tensor: %v", err))
	}

	switch a.DType() {
	case tensor.Float32:
		matmul(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n, cpu.parallel)
	case tensor.Float64:
		matmul(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n, cpu.parallel)
	default:
		panic(fmt.Sprintf("matmul: unsupported dtype %s", a.DType()))
	}

	return result
}

// matmul computes C[i,j] = sum_k A[i,k] * B[k,j] with an i-k-j loop order
// so the inner loop streams rows of B and C. Rows of C are split across
// goroutines; each row is summed in the same order either way.
func matmul[T tensor.DType](c, a, b []T, m, k, n int, cfg parallel.Config) {
	parallel.Range(m, func(start, end int) {
		for i := start; i < end; i++ {
			row := c[i*n : (i+1)*n]
			for p := 0; p < k; p++ {
				aip := a[i*k+p]
				if aip == 0 {
					continue
				}
				bRow := b[p*n : (p+1)*n]
				for j := range row {
					row[j] += aip * bRow[j]
				}
			}
		}
	}, cfg)
}
