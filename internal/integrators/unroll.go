package integrators

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynfit/internal/dynamo"
)

// Differentiable is a system whose right-hand side depends on P trainable parameters.
//
// Linearize returns f(x, t) and writes df/dx into jx (n×n) and df/dθ into jp (n×P).
// jp is nil when NumParams is zero.
type Differentiable interface {
	dynamo.System
	NumParams() int
	Linearize(x dynamo.State, t float64, jx, jp *mat.Dense) dynamo.State
}

// Rollout is a predicted trajectory together with dState/dParams at every grid point.
type Rollout struct {
	Times  dynamo.Grid
	States []dynamo.State
	// Sens[i] is the n×P sensitivity of States[i]; nil when the system has no parameters.
	Sens []*mat.Dense
}

// SensitivityRK4 is classical RK4 that carries the forward sensitivity S = dx/dθ
// through every stage. The tangent update is the exact derivative of the discrete
// RK4 map, so gradients match finite differences of the computed trajectory.
type SensitivityRK4 struct {
	n, p int

	jx, jp             *mat.Dense
	dk1, dk2, dk3, dk4 *mat.Dense
	stage              *mat.Dense
	scratch            dynamo.State
}

func NewSensitivityRK4() *SensitivityRK4 {
	return &SensitivityRK4{}
}

func (r *SensitivityRK4) ensureScratch(n, p int) {
	if r.n == n && r.p == p && r.jx != nil {
		return
	}
	r.n, r.p = n, p
	r.jx = mat.NewDense(n, n, nil)
	r.scratch = make(dynamo.State, n)
	if p == 0 {
		r.jp, r.dk1, r.dk2, r.dk3, r.dk4, r.stage = nil, nil, nil, nil, nil, nil
		return
	}
	r.jp = mat.NewDense(n, p, nil)
	r.dk1 = mat.NewDense(n, p, nil)
	r.dk2 = mat.NewDense(n, p, nil)
	r.dk3 = mat.NewDense(n, p, nil)
	r.dk4 = mat.NewDense(n, p, nil)
	r.stage = mat.NewDense(n, p, nil)
}

// Unroll integrates dyn over grid from x0 with one RK4 step per grid interval.
// A non-finite stage value aborts with a SimulationError wrapping ErrDiverged.
func (r *SensitivityRK4) Unroll(ctx context.Context, dyn Differentiable, x0 dynamo.State, grid dynamo.Grid) (*Rollout, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	n, p := dyn.StateDim(), dyn.NumParams()
	if len(x0) != n {
		return nil, fmt.Errorf("%w: initial state has %d entries, system expects %d", dynamo.ErrDimensionMismatch, len(x0), n)
	}
	r.ensureScratch(n, p)

	out := &Rollout{
		Times:  grid.Clone(),
		States: make([]dynamo.State, len(grid)),
	}
	out.States[0] = x0.Clone()

	var sens *mat.Dense
	if p > 0 {
		out.Sens = make([]*mat.Dense, len(grid))
		sens = mat.NewDense(n, p, nil)
		out.Sens[0] = sens
	}

	x := out.States[0]
	for i := 0; i < len(grid)-1; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t, h := grid[i], grid.Dt(i)
		xNext, sNext, ok := r.step(dyn, x, sens, t, h)
		if !ok {
			return nil, &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrDiverged}
		}

		x, sens = xNext, sNext
		out.States[i+1] = x
		if p > 0 {
			out.Sens[i+1] = sens
		}
	}

	return out, nil
}

func (r *SensitivityRK4) step(dyn Differentiable, x dynamo.State, s *mat.Dense, t, h float64) (dynamo.State, *mat.Dense, bool) {
	n := len(x)
	withSens := s != nil

	k1, ok := r.stageDerivative(dyn, x, s, t, r.dk1)
	if !ok {
		return nil, nil, false
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + 0.5*h*k1[i]
	}
	if withSens {
		r.stage.Scale(0.5*h, r.dk1)
		r.stage.Add(s, r.stage)
	}
	k2, ok := r.stageDerivative(dyn, r.scratch, r.stage, t+0.5*h, r.dk2)
	if !ok {
		return nil, nil, false
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + 0.5*h*k2[i]
	}
	if withSens {
		r.stage.Scale(0.5*h, r.dk2)
		r.stage.Add(s, r.stage)
	}
	k3, ok := r.stageDerivative(dyn, r.scratch, r.stage, t+0.5*h, r.dk3)
	if !ok {
		return nil, nil, false
	}

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + h*k3[i]
	}
	if withSens {
		r.stage.Scale(h, r.dk3)
		r.stage.Add(s, r.stage)
	}
	k4, ok := r.stageDerivative(dyn, r.scratch, r.stage, t+h, r.dk4)
	if !ok {
		return nil, nil, false
	}

	h6 := h / 6.0
	xNext := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNext[i] = x[i] + h6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	if !xNext.IsValid() {
		return nil, nil, false
	}
	if !withSens {
		return xNext, nil, true
	}

	sNext := mat.NewDense(n, r.p, nil)
	sNext.Add(r.dk2, r.dk3)
	sNext.Scale(2, sNext)
	sNext.Add(sNext, r.dk1)
	sNext.Add(sNext, r.dk4)
	sNext.Scale(h6, sNext)
	sNext.Add(s, sNext)
	if !finite(sNext) {
		return nil, nil, false
	}
	return xNext, sNext, true
}

// stageDerivative evaluates k = f(x) and, when s is non-nil, dk = J_x·s + J_θ.
// The returned state is a fresh copy so later stages may reuse the scratch input.
func (r *SensitivityRK4) stageDerivative(dyn Differentiable, x dynamo.State, s *mat.Dense, t float64, dk *mat.Dense) (dynamo.State, bool) {
	k := dyn.Linearize(x, t, r.jx, r.jp).Clone()
	if !k.IsValid() {
		return nil, false
	}
	if s == nil {
		return k, true
	}
	dk.Mul(r.jx, s)
	dk.Add(dk, r.jp)
	return k, finite(dk)
}

func finite(m *mat.Dense) bool {
	raw := m.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		for _, v := range raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols] {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Unroll is a convenience wrapper around a fresh SensitivityRK4.
func Unroll(ctx context.Context, dyn Differentiable, x0 dynamo.State, grid dynamo.Grid) (*Rollout, error) {
	return NewSensitivityRK4().Unroll(ctx, dyn, x0, grid)
}
