// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// The backend implements every tensor.Backend operation for float32 and
// float64 with NumPy-compatible broadcasting. Operations never mutate their
// inputs, so a backend value is safe for concurrent use.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/born-ml/maskrefine/internal/backend/cpu"
	"github.com/born-ml/maskrefine/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that runs every operation on the
// calling goroutine.
func NewSequential() *Backend {
	return internalcpu.NewSequential()
}
