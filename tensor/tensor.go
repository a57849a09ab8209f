// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API used with the refinement loss.
//
// The package re-exports the core types:
//   - Tensor[T, B]: generic tensor with element type T on backend B
//   - RawTensor: untyped storage used by backends and the autodiff tape
//   - Backend: interface for compute implementations
//   - Shape, DataType, Device: core type definitions
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)
package tensor

import (
	"math/rand"

	"github.com/born-ml/maskrefine/internal/tensor"
)

// DType is a constraint for tensor element types (float32, float64).
type DType = tensor.DType

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only supported device.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor. An empty Shape is a scalar.
type Shape = tensor.Shape

// RawTensor is the untyped tensor storage.
type RawTensor = tensor.RawTensor

// Backend is the interface every compute backend implements.
type Backend = tensor.Backend

// Tensor is a generic type-safe tensor.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Full[float32](tensor.Shape{2, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Scalar creates a 0-D tensor.
func Scalar[T DType, B Backend](value T, b B) *Tensor[T, B] {
	return tensor.Scalar[T, B](value, b)
}

// Randn creates a tensor with values drawn from N(0, 1).
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, b)
}

// RandnFrom is Randn with an explicit random source.
func RandnFrom[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.RandnFrom[T, B](shape, rng, b)
}

// RandFrom creates a tensor with values uniform in [0, 1) drawn from rng.
func RandFrom[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.RandFrom[T, B](shape, rng, b)
}

// FromSlice creates a tensor from a Go slice, copying the data.
//
// Example:
//
//	backend := cpu.New()
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// BroadcastShapes returns the NumPy-style broadcast of a and b.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
