package optim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynfit/internal/dynamo"
)

const (
	DefaultBeta1 = 0.9
	DefaultBeta2 = 0.999
	DefaultEps   = 1e-8
)

// Adam is the bias-corrected adaptive moment optimizer with a fixed learning rate.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Eps          float64

	m, v []float64
	step int
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr,
		Beta1:        DefaultBeta1,
		Beta2:        DefaultBeta2,
		Eps:          DefaultEps,
	}
}

func (a *Adam) Validate() error {
	if !(a.LearningRate > 0) || math.IsInf(a.LearningRate, 1) {
		return fmt.Errorf("%w: learning rate must be positive, got %g", dynamo.ErrParameterBounds, a.LearningRate)
	}
	if !(a.Beta1 >= 0 && a.Beta1 < 1) || !(a.Beta2 >= 0 && a.Beta2 < 1) {
		return fmt.Errorf("%w: betas must be in [0, 1), got %g, %g", dynamo.ErrParameterBounds, a.Beta1, a.Beta2)
	}
	if !(a.Eps > 0) || math.IsInf(a.Eps, 1) {
		return fmt.Errorf("%w: eps must be positive, got %g", dynamo.ErrParameterBounds, a.Eps)
	}
	return nil
}

// Step updates params in place from grad.
func (a *Adam) Step(params, grad []float64) error {
	if len(params) != len(grad) {
		return fmt.Errorf("%w: %d params, %d gradients", dynamo.ErrDimensionMismatch, len(params), len(grad))
	}
	if len(a.m) != len(params) {
		a.m = make([]float64, len(params))
		a.v = make([]float64, len(params))
		a.step = 0
	}

	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))
	for i, g := range grad {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / bc1
		vHat := a.v[i] / bc2
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Eps)
	}
	return nil
}

func (a *Adam) Steps() int { return a.step }

func (a *Adam) Reset() {
	a.m, a.v, a.step = nil, nil, 0
}

// ClipNorm rescales grad in place so its L2 norm is at most maxNorm and
// returns the norm before clipping. maxNorm <= 0 disables clipping.
func ClipNorm(grad []float64, maxNorm float64) float64 {
	norm := floats.Norm(grad, 2)
	if maxNorm > 0 && norm > maxNorm {
		floats.Scale(maxNorm/norm, grad)
	}
	return norm
}
