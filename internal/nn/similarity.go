package nn

import (
	"math"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// CosineSimilarity computes cos(a_i, b_i) for every row i.
//
//	s_i = <a_i, b_i> / (||a_i|| * ||b_i||)
//
// a and b must both be [batch, dim]; the result is [batch] with values in
// [-1, 1] up to rounding. It is invariant to positive rescaling of either
// row. A row with zero norm has no direction and yields a *DomainError, as
// does a row holding NaN or Inf.
//
// Each row is divided by its largest absolute value before the dot product
// and norms, so float32 squares neither overflow for huge rows nor flush to
// zero for tiny ones.
//
// The result is built from backend ops, so gradients flow to a and b when
// the backend records them.
func CosineSimilarity[B tensor.Backend](a, b *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	const op = "cosine_similarity"

	if len(a.Shape()) != 2 {
		return nil, &ShapeError{Op: op, Operand: "a", Got: a.Shape(), Details: "expected rank 2 [batch, dim]"}
	}
	if !a.Shape().Equal(b.Shape()) {
		return nil, &ShapeError{Op: op, Operand: "b", Got: b.Shape(), Want: a.Shape()}
	}

	a, err := normalizeRows(op, a, "a")
	if err != nil {
		return nil, err
	}
	b, err = normalizeRows(op, b, "b")
	if err != nil {
		return nil, err
	}

	normA := a.Mul(a).SumDim(-1, false).Sqrt()
	normB := b.Mul(b).SumDim(-1, false).Sqrt()
	dot := a.Mul(b).SumDim(-1, false)
	return dot.Div(normA.Mul(normB)), nil
}

// normalizeRows divides every row of x by its max-abs value. The divisor is
// a constant, which leaves the cosine and its gradient unchanged.
func normalizeRows[B tensor.Backend](op string, x *tensor.Tensor[float32, B], operand string) (*tensor.Tensor[float32, B], error) {
	shape := x.Shape()
	rows, dim := shape[0], shape[1]
	data := x.Data()

	scale := make([]float32, rows)
	for i := range scale {
		var m float32
		for _, v := range data[i*dim : (i+1)*dim] {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, &DomainError{Op: op, Index: i, Value: float64(v), Details: "non-finite value in " + operand}
			}
			m = max(m, float32(math.Abs(float64(v))))
		}
		if m == 0 {
			return nil, &DomainError{Op: op, Index: i, Value: 0, Details: "zero-norm vector in " + operand}
		}
		scale[i] = m
	}

	divisor, err := tensor.FromSlice(scale, tensor.Shape{rows, 1}, x.Backend())
	if err != nil {
		return nil, err
	}
	return x.Div(divisor), nil
}
