package integrators

import "github.com/san-kum/dynfit/internal/dynamo"

// Classical RK4 tableau: stage i is evaluated at t + rk4Nodes[i]·dt from
// x + rk4Nodes[i]·dt·k[i-1], and the step adds dt/6 · Σ rk4Weights[i]·k[i].
// SensitivityRK4 evaluates the same sums in the same order.
var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

// RK4 is the fixed-step classical Runge-Kutta method. It holds its stage
// buffers between calls, so one RK4 must not be shared across goroutines.
type RK4 struct {
	k     dynamo.State
	sum   dynamo.State
	stage dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.stage) == n {
		return
	}
	r.k = make(dynamo.State, n)
	r.sum = make(dynamo.State, n)
	r.stage = make(dynamo.State, n)
}

// Step returns a new state; x is not modified.
func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	r.ensureScratch(len(x))

	clear(r.sum)
	for i := range rk4Nodes {
		// stage i is built from k of stage i-1, which r.k still holds
		copy(r.stage, x)
		if i > 0 {
			for j := range r.stage {
				r.stage[j] += rk4Nodes[i] * dt * r.k[j]
			}
		}
		copy(r.k, dyn.Derive(r.stage, t+rk4Nodes[i]*dt))
		for j := range r.sum {
			r.sum[j] += rk4Weights[i] * r.k[j]
		}
	}

	next := make(dynamo.State, len(x))
	dt6 := dt / 6.0
	for j := range next {
		next[j] = x[j] + dt6*r.sum[j]
	}
	return next
}
