// Package hybrid combines the known restoring force with a learned correction.
//
// The right-hand side is
//
//	x' = v
//	v' = -(k/m)·x - N(x, v; θ)/m
//
// where N is a [correction.Function]. [Dynamics] satisfies both
// [dynamo.System] and [integrators.Differentiable].
package hybrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dynamo"
)

type Dynamics struct {
	mass      float64
	stiffness float64
	n         correction.Function

	dParams []float64
}

func New(mass, stiffness float64, n correction.Function) (*Dynamics, error) {
	if !(mass > 0) || math.IsInf(mass, 1) {
		return nil, fmt.Errorf("%w: mass must be positive, got %f", dynamo.ErrParameterBounds, mass)
	}
	if n == nil {
		n = correction.Zero{}
	}
	return &Dynamics{
		mass:      mass,
		stiffness: stiffness,
		n:         n,
		dParams:   make([]float64, n.NumParams()),
	}, nil
}

func (d *Dynamics) StateDim() int                   { return 2 }
func (d *Dynamics) NumParams() int                  { return d.n.NumParams() }
func (d *Dynamics) Correction() correction.Function { return d.n }
func (d *Dynamics) Mass() float64                   { return d.mass }
func (d *Dynamics) Stiffness() float64              { return d.stiffness }

// Analytic returns the known part of the acceleration, -(k/m)·x.
func (d *Dynamics) Analytic(x dynamo.State) float64 {
	return -(d.stiffness / d.mass) * x[0]
}

func (d *Dynamics) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{
		x[1],
		d.Analytic(x) - d.n.Eval(x[0], x[1])/d.mass,
	}
}

// Linearize returns f(x) and fills jx = df/dx (2×2) and jp = df/dθ (2×P).
func (d *Dynamics) Linearize(x dynamo.State, t float64, jx, jp *mat.Dense) dynamo.State {
	if len(d.dParams) != d.n.NumParams() {
		d.dParams = make([]float64, d.n.NumParams())
	}
	out, dx, dv := d.n.Grad(x[0], x[1], d.dParams)

	jx.Set(0, 0, 0)
	jx.Set(0, 1, 1)
	jx.Set(1, 0, -d.stiffness/d.mass-dx/d.mass)
	jx.Set(1, 1, -dv/d.mass)

	if jp != nil {
		for j, g := range d.dParams {
			jp.Set(0, j, 0)
			jp.Set(1, j, -g/d.mass)
		}
	}

	return dynamo.State{x[1], d.Analytic(x) - out/d.mass}
}
