// Package correction provides learned force terms for the hybrid model.
//
// A [Function] maps the instantaneous state (x, v) to a scalar force and can
// report its partial derivatives with respect to the inputs and to every
// trainable parameter. Implementations keep scratch buffers and are not safe
// for concurrent use.
package correction

import (
	"fmt"

	"github.com/san-kum/dynfit/internal/dynamo"
)

// Function is a differentiable scalar correction N(x, v; θ).
type Function interface {
	Eval(x, v float64) float64
	// Grad evaluates N and overwrites dParams (len NumParams) with dN/dθ.
	Grad(x, v float64, dParams []float64) (out, dx, dv float64)
	// Params is a live view of θ; writes change the function.
	Params() []float64
	NumParams() int
}

// SetParams copies p into fn, e.g. when restoring saved weights.
func SetParams(fn Function, p []float64) error {
	if len(p) != fn.NumParams() {
		return fmt.Errorf("%w: expected %d parameters, got %d", dynamo.ErrDimensionMismatch, fn.NumParams(), len(p))
	}
	copy(fn.Params(), p)
	return nil
}

// Zero is the parameter-free correction that always returns 0.
type Zero struct{}

func (Zero) Eval(x, v float64) float64 { return 0 }

func (Zero) Grad(x, v float64, dParams []float64) (float64, float64, float64) {
	return 0, 0, 0
}

func (Zero) Params() []float64 { return nil }
func (Zero) NumParams() int    { return 0 }

// Linear is N = wx·x + wv·v + b.
type Linear struct {
	params [3]float64
}

func NewLinear(wx, wv, b float64) *Linear {
	return &Linear{params: [3]float64{wx, wv, b}}
}

func (l *Linear) Eval(x, v float64) float64 {
	return l.params[0]*x + l.params[1]*v + l.params[2]
}

func (l *Linear) Grad(x, v float64, dParams []float64) (float64, float64, float64) {
	dParams[0] = x
	dParams[1] = v
	dParams[2] = 1
	return l.Eval(x, v), l.params[0], l.params[1]
}

func (l *Linear) Params() []float64 { return l.params[:] }
func (l *Linear) NumParams() int    { return len(l.params) }
