// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used to train a mask refinement model.
//
// Optimizers consume the gradient map returned by autodiff.Backward and
// update parameter storage in place:
//
//	grads := autodiff.Backward(out.Loss, backend)
//	optimizer.Step(grads)
//	optimizer.ZeroGrad()
package optim

import (
	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/optim"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// SGD represents the SGD optimizer with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(head.Parameters(), optim.SGDConfig{LR: 0.05}, backend)
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam represents the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
