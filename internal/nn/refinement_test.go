package nn_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/maskrefine/internal/autodiff"
	"github.com/born-ml/maskrefine/internal/backend/cpu"
	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type cpuEncoder = nn.EncoderFunc[*cpu.CPUBackend]

// fixed returns an encoder that ignores its input.
func fixed(out *cpuTensor) cpuEncoder {
	return func(*cpuTensor) *cpuTensor { return out }
}

// onesMask returns a [batch, 1, h, w] mask of ones.
func onesMask(input *cpuTensor) *cpuTensor {
	s := input.Shape()
	return tensor.Ones[float32](tensor.Shape{s[0], 1, s[2], s[3]}, input.Backend())
}

func identity(input *cpuTensor) *cpuTensor { return input }

type fixture struct {
	backend    *cpu.CPUBackend
	images     *cpuTensor
	background *cpuTensor
	text       *cpuTensor
}

func newFixture(t *testing.T, batch int) fixture {
	t.Helper()
	backend := cpu.New()
	rng := rand.New(rand.NewSource(11))
	return fixture{
		backend:    backend,
		images:     tensor.RandFrom[float32](tensor.Shape{batch, 3, 2, 2}, rng, backend),
		background: tensor.RandnFrom[float32](tensor.Shape{batch, 4}, rng, backend),
		text:       tensor.RandnFrom[float32](tensor.Shape{batch, 4}, rng, backend),
	}
}

func newLoss(t *testing.T, image, text, mask cpuEncoder, match nn.MatchLoss[*cpu.CPUBackend]) *nn.RefinementLoss[*cpu.CPUBackend] {
	t.Helper()
	loss, err := nn.NewRefinementLoss[*cpu.CPUBackend](nn.DefaultRefinementConfig(), image, text, mask, match)
	require.NoError(t, err)
	return loss
}

func scalarMatch(v float32) nn.MatchFunc[*cpu.CPUBackend] {
	return func(in nn.MatchInput[*cpu.CPUBackend]) (*cpuTensor, error) {
		return tensor.Scalar[float32](v, in.Mask.Backend()), nil
	}
}

func TestRefinementLossWorkedExample(t *testing.T) {
	f := newFixture(t, 2)
	v := mustTensor(t, f.backend, []float32{1, 0, 0, 0, 0, 1, 0, 0}, 2, 4)
	u := mustTensor(t, f.backend, []float32{1, 0, 0, 0, 0, 0, 1, 0}, 2, 4)

	loss := newLoss(t, fixed(v), fixed(u), onesMask, nn.ZeroMatch[*cpu.CPUBackend]{})
	out, err := loss.Forward(f.images, f.background, f.text)

	require.Nil(t, out)
	require.ErrorIs(t, err, nn.ErrNumericDomain)
	var domainErr *nn.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 0, domainErr.Index)
	assert.Equal(t, "refinement_loss", domainErr.Op)
	assert.InDelta(t, 1.0, domainErr.Value, 1e-6)
}

func TestRefinementLossOrthogonalElement(t *testing.T) {
	f := newFixture(t, 1)
	v := mustTensor(t, f.backend, []float32{0, 1, 0, 0}, 1, 4)
	u := mustTensor(t, f.backend, []float32{0, 0, 1, 0}, 1, 4)

	loss := newLoss(t, fixed(v), fixed(u), onesMask, scalarMatch(2))
	out, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)

	assert.InDelta(t, 0, out.Similarity.Data()[0], 1e-7)
	assert.InDelta(t, 0, out.Refinement.Item(), 1e-7)
	assert.InDelta(t, 2, out.Matching.Item(), 1e-7)
	assert.InDelta(t, 0.05*2, out.Loss.Item(), 1e-6)
	assert.Equal(t, tensor.Shape{}, out.Loss.Shape())
}

func TestRefinementLossValue(t *testing.T) {
	f := newFixture(t, 2)
	// s = [0.5, -0.5]
	v := mustTensor(t, f.backend, []float32{1, 0, 1, 0}, 2, 2)
	u := mustTensor(t, f.backend, []float32{0.5, float32(math.Sqrt(3) / 2), -0.5, float32(math.Sqrt(3) / 2)}, 2, 2)

	loss := newLoss(t, fixed(v), fixed(u), onesMask, scalarMatch(1))
	out, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)

	want := (-math.Log(0.5) - math.Log(1.5)) / 2
	assert.InDeltaSlice(t, []float32{0.5, -0.5}, out.Similarity.Data(), 1e-6)
	assert.InDelta(t, want, out.Refinement.Item(), 1e-6)
	assert.InDelta(t, want+0.05, out.Loss.Item(), 1e-6)
}

func TestRefinementLossForeground(t *testing.T) {
	f := newFixture(t, 2)
	halfMask := func(input *cpuTensor) *cpuTensor {
		s := input.Shape()
		return tensor.Full[float32](tensor.Shape{s[0], 1, s[2], s[3]}, 0.5, input.Backend())
	}
	imageEnc := nn.NewPooledImageEncoder(3, 4, rand.New(rand.NewSource(5)), f.backend)

	loss := newLoss(t, imageEnc.Forward, identity, halfMask, nn.ZeroMatch[*cpu.CPUBackend]{})
	out, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)

	assert.Equal(t, f.images.Shape(), out.Foreground.Shape())
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, out.Mask.Shape())
	for i, x := range f.images.Data() {
		assert.InDelta(t, 0.5*x, out.Foreground.Data()[i], 1e-7)
	}
	assert.Equal(t, tensor.Shape{2}, out.Similarity.Shape())
}

func TestRefinementLossParallelEmbeddings(t *testing.T) {
	f := newFixture(t, 2)
	rng := rand.New(rand.NewSource(9))
	u := tensor.RandnFrom[float32](tensor.Shape{2, 4}, rng, f.backend)

	for _, scale := range []float64{1e-20, 0.3, 1, 17, 1e20} {
		v := u.MulScalar(scale)
		loss := newLoss(t, fixed(v), fixed(u), onesMask, nn.ZeroMatch[*cpu.CPUBackend]{})
		_, err := loss.Forward(f.images, f.background, f.text)
		assert.ErrorIs(t, err, nn.ErrNumericDomain, "scale %v", scale)
	}
}

func TestRefinementLossHugeEmbeddings(t *testing.T) {
	f := newFixture(t, 1)
	u := mustTensor(t, f.backend, []float32{1e20, 0}, 1, 2)

	loss := newLoss(t, fixed(mustTensor(t, f.backend, []float32{3e20, 0}, 1, 2)), fixed(u), onesMask, nn.ZeroMatch[*cpu.CPUBackend]{})
	_, err := loss.Forward(f.images, f.background, f.text)
	require.ErrorIs(t, err, nn.ErrNumericDomain)

	loss = newLoss(t, fixed(mustTensor(t, f.backend, []float32{0, 3e20}, 1, 2)), fixed(u), onesMask, nn.ZeroMatch[*cpu.CPUBackend]{})
	out, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Similarity.Data()[0], 1e-6)
	assert.InDelta(t, 0, out.Loss.Item(), 1e-6)
}

func TestRefinementLossZeroEmbedding(t *testing.T) {
	f := newFixture(t, 2)
	v := mustTensor(t, f.backend, []float32{1, 0, 0, 0, 0, 0, 0, 0}, 2, 4)
	u := mustTensor(t, f.backend, []float32{0, 1, 0, 0, 0, 0, 1, 0}, 2, 4)

	loss := newLoss(t, fixed(v), fixed(u), onesMask, nn.ZeroMatch[*cpu.CPUBackend]{})
	_, err := loss.Forward(f.images, f.background, f.text)

	require.ErrorIs(t, err, nn.ErrNumericDomain)
	var domainErr *nn.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, 1, domainErr.Index)
}

func TestRefinementLossMonotone(t *testing.T) {
	f := newFixture(t, 1)
	u := mustTensor(t, f.backend, []float32{1, 0}, 1, 2)

	prev := math.Inf(1)
	for deg := 5; deg <= 90; deg += 5 {
		theta := float64(deg) * math.Pi / 180
		v := mustTensor(t, f.backend, []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}, 1, 2)

		loss := newLoss(t, fixed(v), fixed(u), onesMask, nn.ZeroMatch[*cpu.CPUBackend]{})
		out, err := loss.Forward(f.images, f.background, f.text)
		require.NoError(t, err)

		r := float64(out.Refinement.Item())
		assert.Less(t, r, prev, "angle %d°", deg)
		assert.GreaterOrEqual(t, r, -1e-6, "angle %d°", deg)
		prev = r
	}
	assert.InDelta(t, 0, prev, 1e-6, "orthogonal embeddings give zero refinement")
}

func TestRefinementLossDeterministic(t *testing.T) {
	f := newFixture(t, 3)
	rng := rand.New(rand.NewSource(1))
	head := nn.NewPixelMaskHead(3, rng, f.backend)
	imageEnc := nn.NewPooledImageEncoder(3, 4, rng, f.backend)
	textEnc := nn.NewLinear(4, 4, f.backend, nn.WithRand(rng))

	loss, err := nn.NewRefinementLoss[*cpu.CPUBackend](nn.DefaultRefinementConfig(), imageEnc, textEnc, head, nn.CosineMatch[*cpu.CPUBackend]{})
	require.NoError(t, err)

	first, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)
	second, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)

	assert.Equal(t, first.Loss.Item(), second.Loss.Item())
	assert.Equal(t, first.Mask.Data(), second.Mask.Data())
	assert.Equal(t, first.Similarity.Data(), second.Similarity.Data())
}

func TestRefinementLossShapeErrors(t *testing.T) {
	backend := cpu.New()
	images := tensor.Ones[float32](tensor.Shape{2, 3, 2, 2}, backend)
	prompts := tensor.Ones[float32](tensor.Shape{2, 4}, backend)
	emb := mustTensor(t, backend, []float32{1, 0, 0, 1}, 2, 2)
	embOther := mustTensor(t, backend, []float32{0, 1, 1, 0}, 2, 2)

	maskOf := func(shape ...int) cpuEncoder {
		return fixed(tensor.Ones[float32](tensor.Shape(shape), backend))
	}

	tests := []struct {
		name       string
		images     *cpuTensor
		background *cpuTensor
		text       *cpuTensor
		mask       cpuEncoder
		image      cpuEncoder
		textEnc    cpuEncoder
		operand    string
	}{
		{
			name:    "images rank 3",
			images:  tensor.Ones[float32](tensor.Shape{2, 3, 4}, backend),
			operand: "images",
		},
		{
			name:       "background batch",
			background: tensor.Ones[float32](tensor.Shape{3, 4}, backend),
			operand:    "background_prompt",
		},
		{
			name:    "text rank 1",
			text:    tensor.Ones[float32](tensor.Shape{8}, backend),
			operand: "text_prompt",
		},
		{
			name:    "prompt dim differs",
			text:    tensor.Ones[float32](tensor.Shape{2, 5}, backend),
			operand: "text_prompt",
		},
		{
			name:    "mask batch",
			mask:    maskOf(1, 1, 2, 2),
			operand: "mask",
		},
		{
			name:    "mask rank",
			mask:    maskOf(2, 2, 2),
			operand: "mask",
		},
		{
			name:    "mask not broadcastable",
			mask:    maskOf(2, 2, 2, 2),
			operand: "mask",
		},
		{
			name:    "mask larger than images",
			images:  tensor.Ones[float32](tensor.Shape{2, 1, 2, 2}, backend),
			mask:    maskOf(2, 3, 2, 2),
			operand: "mask",
		},
		{
			name:    "embedding dims differ",
			textEnc: fixed(tensor.Ones[float32](tensor.Shape{2, 3}, backend)),
			operand: "background_embedding",
		},
		{
			name:    "embedding batch",
			image:   fixed(tensor.Ones[float32](tensor.Shape{1, 2}, backend)),
			operand: "foreground_embedding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			or := func(x, def *cpuTensor) *cpuTensor {
				if x != nil {
					return x
				}
				return def
			}
			orEnc := func(e, def cpuEncoder) cpuEncoder {
				if e != nil {
					return e
				}
				return def
			}

			loss := newLoss(t,
				orEnc(tt.image, fixed(emb)),
				orEnc(tt.textEnc, fixed(embOther)),
				orEnc(tt.mask, onesMask),
				nn.ZeroMatch[*cpu.CPUBackend]{},
			)
			_, err := loss.Forward(or(tt.images, images), or(tt.background, prompts), or(tt.text, prompts))

			require.ErrorIs(t, err, nn.ErrShapeMismatch)
			var shapeErr *nn.ShapeError
			require.True(t, errors.As(err, &shapeErr))
			assert.Equal(t, tt.operand, shapeErr.Operand)
		})
	}
}

func TestRefinementLossMatchErrors(t *testing.T) {
	f := newFixture(t, 2)
	v := mustTensor(t, f.backend, []float32{1, 0, 0, 1}, 2, 2)
	u := mustTensor(t, f.backend, []float32{0, 1, 1, 0}, 2, 2)

	boom := errors.New("boom")
	failing := nn.MatchFunc[*cpu.CPUBackend](func(nn.MatchInput[*cpu.CPUBackend]) (*cpuTensor, error) {
		return nil, boom
	})
	loss := newLoss(t, fixed(v), fixed(u), onesMask, failing)
	_, err := loss.Forward(f.images, f.background, f.text)
	assert.ErrorIs(t, err, boom)

	vector := nn.MatchFunc[*cpu.CPUBackend](func(in nn.MatchInput[*cpu.CPUBackend]) (*cpuTensor, error) {
		return tensor.Ones[float32](tensor.Shape{2}, in.Mask.Backend()), nil
	})
	loss = newLoss(t, fixed(v), fixed(u), onesMask, vector)
	_, err = loss.Forward(f.images, f.background, f.text)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)

	oneElement := nn.MatchFunc[*cpu.CPUBackend](func(in nn.MatchInput[*cpu.CPUBackend]) (*cpuTensor, error) {
		return tensor.Full[float32](tensor.Shape{1}, 3, in.Mask.Backend()), nil
	})
	loss = newLoss(t, fixed(v), fixed(u), onesMask, oneElement)
	out, err := loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{}, out.Matching.Shape())
	assert.InDelta(t, 0.15, out.Loss.Item(), 1e-6)
}

func TestRefinementLossMatchInput(t *testing.T) {
	f := newFixture(t, 2)
	v := mustTensor(t, f.backend, []float32{1, 0, 0, 1}, 2, 2)
	textEnc := func(p *cpuTensor) *cpuTensor { return p.MatMul(tensor.Ones[float32](tensor.Shape{4, 2}, p.Backend())) }

	var got nn.MatchInput[*cpu.CPUBackend]
	capture := nn.MatchFunc[*cpu.CPUBackend](func(in nn.MatchInput[*cpu.CPUBackend]) (*cpuTensor, error) {
		got = in
		return tensor.Scalar[float32](0, in.Mask.Backend()), nil
	})
	bg := mustTensor(t, f.backend, []float32{1, 0, 0, 0, 0, 0, 0, -1}, 2, 4)
	loss := newLoss(t, fixed(v), textEnc, onesMask, capture)
	out, err := loss.Forward(f.images, bg, f.text)
	require.NoError(t, err)

	assert.Same(t, out.Mask, got.Mask)
	assert.Same(t, out.Foreground, got.Foreground)
	assert.Same(t, v, got.ForegroundEmbedding)
	assert.Same(t, f.text, got.TextPrompt)
	assert.Equal(t, tensor.Shape{2, 2}, got.TextEmbedding.Shape())
	assert.Equal(t, tensor.Shape{2, 2}, got.BackgroundEmbedding.Shape())
}

func TestCosineMatch(t *testing.T) {
	backend := cpu.New()
	in := nn.MatchInput[*cpu.CPUBackend]{
		ForegroundEmbedding: mustTensor(t, backend, []float32{1, 0, 0, 1}, 2, 2),
		TextEmbedding:       mustTensor(t, backend, []float32{1, 0, 1, 0}, 2, 2),
	}
	m, err := nn.CosineMatch[*cpu.CPUBackend]{}.Forward(in)
	require.NoError(t, err)
	// (1 - 1 + 1 - 0) / 2
	assert.InDelta(t, 0.5, m.Item(), 1e-6)
}

func TestNewRefinementLossErrors(t *testing.T) {
	enc := cpuEncoder(identity)
	cfg := nn.DefaultRefinementConfig()

	_, err := nn.NewRefinementLoss[*cpu.CPUBackend](cfg, enc, enc, enc, nil)
	assert.ErrorIs(t, err, nn.ErrMatchLossUndefined)

	match := nn.ZeroMatch[*cpu.CPUBackend]{}
	_, err = nn.NewRefinementLoss[*cpu.CPUBackend](cfg, nil, enc, enc, match)
	assert.ErrorIs(t, err, nn.ErrMissingComponent)
	_, err = nn.NewRefinementLoss[*cpu.CPUBackend](cfg, enc, nil, enc, match)
	assert.ErrorIs(t, err, nn.ErrMissingComponent)
	_, err = nn.NewRefinementLoss[*cpu.CPUBackend](cfg, enc, enc, nil, match)
	assert.ErrorIs(t, err, nn.ErrMissingComponent)

	_, err = nn.NewRefinementLoss[*cpu.CPUBackend](nn.RefinementConfig{LambdaRefine: -1}, enc, enc, enc, match)
	assert.Error(t, err)
	_, err = nn.NewRefinementLoss[*cpu.CPUBackend](nn.RefinementConfig{LambdaRefine: float32(math.NaN())}, enc, enc, enc, match)
	assert.Error(t, err)
	_, err = nn.NewRefinementLoss[*cpu.CPUBackend](nn.RefinementConfig{SaturationTolerance: -1}, enc, enc, enc, match)
	assert.Error(t, err)

	loss, err := nn.NewRefinementLoss[*cpu.CPUBackend](nn.RefinementConfig{}, enc, enc, enc, match)
	require.NoError(t, err)
	assert.Equal(t, float32(0), loss.Config().LambdaRefine)
	assert.Equal(t, 1e-6, loss.Config().SaturationTolerance)
	assert.Equal(t, float32(0.05), nn.DefaultRefinementConfig().LambdaRefine)
}

func TestRefinementLossLogsDebug(t *testing.T) {
	f := newFixture(t, 1)
	v := mustTensor(t, f.backend, []float32{0, 1}, 1, 2)
	u := mustTensor(t, f.backend, []float32{1, 0}, 1, 2)

	core, logs := observer.New(zapcore.DebugLevel)
	loss, err := nn.NewRefinementLoss[*cpu.CPUBackend](nn.DefaultRefinementConfig(),
		fixed(v), fixed(u), cpuEncoder(onesMask), nn.ZeroMatch[*cpu.CPUBackend]{},
		nn.WithLogger(zap.New(core)))
	require.NoError(t, err)

	_, err = loss.Forward(f.images, f.background, f.text)
	require.NoError(t, err)

	entries := logs.FilterMessage("refinement forward").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["batch"])
}

type adBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func TestRefinementLossGradients(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(21))

	head := nn.NewPixelMaskHead(3, rng, backend)
	imageEnc := nn.NewPooledImageEncoder(3, 4, rng, backend)
	textEnc := nn.NewLinear(6, 4, backend, nn.WithRand(rng))

	loss, err := nn.NewRefinementLoss[adBackend](nn.DefaultRefinementConfig(), imageEnc, textEnc, head, nn.CosineMatch[adBackend]{})
	require.NoError(t, err)

	images := tensor.RandFrom[float32](tensor.Shape{2, 3, 3, 3}, rng, backend)
	background := tensor.RandnFrom[float32](tensor.Shape{2, 6}, rng, backend)
	text := tensor.RandnFrom[float32](tensor.Shape{2, 6}, rng, backend)

	backend.Tape().StartRecording()
	out, err := loss.Forward(images, background, text)
	require.NoError(t, err)
	grads := autodiff.Backward(out.Loss, backend)

	for _, p := range head.Parameters() {
		g, ok := grads[p.Tensor().Raw()]
		require.True(t, ok, "missing gradient for %s", p.Name())
		assert.Equal(t, p.Tensor().Shape(), g.Shape())
	}
	for _, p := range imageEnc.Parameters() {
		_, ok := grads[p.Tensor().Raw()]
		assert.True(t, ok, "missing gradient for %s", p.Name())
	}
}
