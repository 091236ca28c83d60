// Package dataset synthesizes noisy oscillator observations.
//
// The reference system is integrated accurately over the grid and every
// sample then receives independent zero-mean Gaussian noise. The noise source
// is seeded, so one seed always yields the same trajectory bit for bit.
package dataset

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/integrators"
)

const (
	SolverRK45  = "rk45"
	SolverRK4   = "rk4"
	SolverEuler = "euler"
)

type Options struct {
	Noise  float64
	Seed   uint64
	Solver string
	Solve  dynamo.SolveConfig

	// Observers see every internal step of the reference integration.
	Observers []dynamo.Observer
}

func DefaultOptions() Options {
	return Options{
		Noise:  0.1,
		Seed:   42,
		Solver: SolverRK45,
		Solve:  dynamo.DefaultSolveConfig(),
	}
}

// Trajectory holds the ideal and the noisy samples on a shared grid.
// Treat it as read-only once generated.
type Trajectory struct {
	Times dynamo.Grid
	X     []float64
	V     []float64
	TrueX []float64
	TrueV []float64
	Noise float64
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

// Initial returns the first noisy sample; integration always starts here.
func (tr *Trajectory) Initial() dynamo.State {
	return dynamo.State{tr.X[0], tr.V[0]}
}

// Validate checks that every series matches the grid length. Series are
// checked in the order x, v, true x, true v and the first mismatch is reported.
func (tr *Trajectory) Validate() error {
	if err := tr.Times.Validate(); err != nil {
		return err
	}
	n := len(tr.Times)
	for _, s := range []struct {
		name string
		data []float64
	}{
		{"x", tr.X},
		{"v", tr.V},
		{"true x", tr.TrueX},
		{"true v", tr.TrueV},
	} {
		if len(s.data) != n {
			return fmt.Errorf("%w: %s has %d samples, grid has %d", dynamo.ErrDimensionMismatch, s.name, len(s.data), n)
		}
	}
	return nil
}

// Generate integrates sys from x0 over grid and adds N(0, Noise²) to each sample.
func Generate(ctx context.Context, sys dynamo.System, x0 dynamo.State, grid dynamo.Grid, opts Options) (*Trajectory, error) {
	if !(opts.Noise >= 0) || math.IsInf(opts.Noise, 1) {
		return nil, fmt.Errorf("%w: noise must be non-negative, got %f", dynamo.ErrParameterBounds, opts.Noise)
	}
	if sys.StateDim() != 2 {
		return nil, fmt.Errorf("%w: expected a 2-dimensional oscillator, got %d", dynamo.ErrDimensionMismatch, sys.StateDim())
	}

	var integ dynamo.Integrator
	switch opts.Solver {
	case SolverRK45, "":
		integ = integrators.NewRK45()
	case SolverRK4:
		integ = integrators.NewRK4()
	case SolverEuler:
		integ = integrators.NewEuler()
	default:
		return nil, fmt.Errorf("unknown solver: %s", opts.Solver)
	}

	states, err := integrators.Solve(ctx, sys, integ, x0, grid, opts.Solve, opts.Observers...)
	if err != nil {
		return nil, fmt.Errorf("integrate reference: %w", err)
	}

	n := len(grid)
	tr := &Trajectory{
		Times: grid.Clone(),
		X:     make([]float64, n),
		V:     make([]float64, n),
		TrueX: make([]float64, n),
		TrueV: make([]float64, n),
		Noise: opts.Noise,
	}
	for i, s := range states {
		tr.TrueX[i] = s[0]
		tr.TrueV[i] = s[1]
	}

	copy(tr.X, tr.TrueX)
	copy(tr.V, tr.TrueV)
	if opts.Noise > 0 {
		noise := distuv.Normal{Mu: 0, Sigma: opts.Noise, Src: rand.NewPCG(opts.Seed, opts.Seed)}
		for i := range tr.X {
			tr.X[i] += noise.Rand()
		}
		for i := range tr.V {
			tr.V[i] += noise.Rand()
		}
	}

	return tr, nil
}
