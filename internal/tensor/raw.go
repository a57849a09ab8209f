package tensor

import "fmt"

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// RawTensor is the low-level, untyped tensor representation used by backends.
// Storage is a single typed slice selected by dtype; the other one stays nil.
type RawTensor struct {
	shape  Shape
	stride []int
	dtype  DataType
	device Device
	f32    []float32
	f64    []float64
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	r := &RawTensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}

	n := shape.NumElements()
	switch dtype {
	case Float32:
		r.f32 = make([]float32, n)
	case Float64:
		r.f64 = make([]float64, n)
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}

	return r, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// AsFloat32 returns the underlying []float32 storage.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	return r.f32
}

// AsFloat64 returns the underlying []float64 storage.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	return r.f64
}

// At64 returns element i widened to float64, whatever the dtype.
func (r *RawTensor) At64(i int) float64 {
	if r.dtype == Float32 {
		return float64(r.f32[i])
	}
	return r.f64[i]
}

// SetAt64 stores v at element i, narrowing to the tensor's dtype.
func (r *RawTensor) SetAt64(i int, v float64) {
	if r.dtype == Float32 {
		r.f32[i] = float32(v)
		return
	}
	r.f64[i] = v
}

// Clone creates a deep copy of the RawTensor.
func (r *RawTensor) Clone() *RawTensor {
	c := &RawTensor{
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
	if r.f32 != nil {
		c.f32 = append([]float32(nil), r.f32...)
	}
	if r.f64 != nil {
		c.f64 = append([]float64(nil), r.f64...)
	}
	return c
}

// WithShape returns a RawTensor that shares storage with r under a new shape.
// The element counts must match.
func (r *RawTensor) WithShape(shape Shape) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("cannot view %v as %v: element count differs", r.shape, shape)
	}
	return &RawTensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
		device: r.device,
		f32:    r.f32,
		f64:    r.f64,
	}, nil
}
