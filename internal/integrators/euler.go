package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynfit/internal/dynamo"
)

// Euler is the explicit first-order method x + dt·f(x, t). It is only
// accurate with many substeps per grid interval.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (Euler) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	next := make(dynamo.State, len(x))
	floats.AddScaledTo(next, x, dt, dyn.Derive(x, t))
	return next
}
