package optim

import (
	"math"

	"github.com/born-ml/maskrefine/internal/nn"
	"github.com/born-ml/maskrefine/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int                            // Timestep for bias correction
	m       map[*nn.Parameter[B]][]float32 // First moment estimates
	v       map[*nn.Parameter[B]][]float32 // Second moment estimates
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling zero fields with defaults.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]][]float32),
		v:       make(map[*nn.Parameter[B]][]float32),
		backend: backend,
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped; the timestep advances regardless.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := gradientFor(param, grads, a.backend)
		if grad == nil {
			continue
		}
		data := param.Tensor().Data()

		m, ok := a.m[param]
		if !ok {
			m = make([]float32, len(data))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, len(data))
			a.v[param] = v
		}

		for i, g := range grad {
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g*g
			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2
			data[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}
