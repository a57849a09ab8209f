// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/maskrefine/autodiff"
	"github.com/born-ml/maskrefine/backend/cpu"
	"github.com/born-ml/maskrefine/nn"
	"github.com/born-ml/maskrefine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendT = *autodiff.Backend[*cpu.Backend]

func TestPublicRefinementLoss(t *testing.T) {
	backend := autodiff.New(cpu.New())
	rng := rand.New(rand.NewSource(4))

	head := nn.NewPixelMaskHead(3, rng, backend)
	imageEnc := nn.NewPooledImageEncoder(3, 5, rng, backend)
	textEnc := nn.NewLinear(7, 5, backend, nn.WithRand(rng))

	loss, err := nn.NewRefinementLoss[backendT](nn.DefaultRefinementConfig(), imageEnc, textEnc, head, nn.ZeroMatch[backendT]{})
	require.NoError(t, err)

	images := tensor.RandFrom[float32](tensor.Shape{2, 3, 4, 4}, rng, backend)
	background := tensor.RandnFrom[float32](tensor.Shape{2, 7}, rng, backend)
	text := tensor.RandnFrom[float32](tensor.Shape{2, 7}, rng, backend)

	backend.Tape().StartRecording()
	out, err := loss.Forward(images, background, text)
	require.NoError(t, err)
	assert.Equal(t, images.Shape(), out.Foreground.Shape())
	assert.Equal(t, out.Refinement.Item(), out.Loss.Item())

	grads := autodiff.Backward(out.Loss, backend)
	_, ok := grads[head.Parameters()[0].Tensor().Raw()]
	assert.True(t, ok)
}

func TestPublicMissingMatchLoss(t *testing.T) {
	backend := cpu.New()
	enc := nn.NewLinear(2, 2, backend)
	_, err := nn.NewRefinementLoss[*cpu.Backend](nn.DefaultRefinementConfig(), enc, enc, enc, nil)
	assert.ErrorIs(t, err, nn.ErrMatchLossUndefined)
}
