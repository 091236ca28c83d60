package dataset

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/physics"
)

func referenceSetup(t *testing.T, c float64) (*physics.SpringMass, dynamo.Grid) {
	t.Helper()
	sys, err := physics.NewSpringMass(1.0, 5.0, c)
	require.NoError(t, err)
	grid, err := dynamo.NewUniformGrid(0, 10, 200)
	require.NoError(t, err)
	return sys, grid
}

func TestGenerate_Deterministic(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)
	opts := DefaultOptions()

	a, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)
	b, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)

	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.V, b.V)

	opts.Seed++
	c, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)
	assert.NotEqual(t, a.X, c.X)
	assert.Equal(t, a.TrueX, c.TrueX)
}

func TestGenerate_Shape(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)

	tr, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, tr.Validate())

	assert.Equal(t, 200, tr.Len())
	assert.Len(t, tr.TrueV, 200)
	assert.Equal(t, 1.0, tr.TrueX[0])
	assert.Equal(t, dynamo.State{tr.X[0], tr.V[0]}, tr.Initial())
}

func TestGenerate_NoiseStatistics(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)
	opts := DefaultOptions()
	opts.Noise = 0.1

	tr, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)

	residuals := make([]float64, 0, 2*tr.Len())
	for i := range tr.X {
		residuals = append(residuals, tr.X[i]-tr.TrueX[i], tr.V[i]-tr.TrueV[i])
	}

	mean, _ := stats.Mean(residuals)
	sd, _ := stats.StandardDeviationSample(residuals)
	assert.InDelta(t, 0, mean, 0.03)
	assert.InDelta(t, 0.1, sd, 0.02)
}

func TestGenerate_NoiselessMatchesAnalytic(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)
	opts := DefaultOptions()
	opts.Noise = 0

	tr, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)
	assert.Equal(t, tr.TrueX, tr.X)

	// underdamped: x(t) = e^{-ζω t}(cos ωd t + ζω/ωd sin ωd t)
	w0 := math.Sqrt(5.0)
	zeta := 0.7 / (2 * w0)
	wd := w0 * math.Sqrt(1-zeta*zeta)
	for i, ti := range tr.Times {
		want := math.Exp(-zeta*w0*ti) * (math.Cos(wd*ti) + zeta*w0/wd*math.Sin(wd*ti))
		assert.InDelta(t, want, tr.X[i], 1e-6, "t=%.3f", ti)
	}
}

func TestGenerate_RK4Solver(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)
	opts := DefaultOptions()
	opts.Noise = 0

	ref, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)

	opts.Solver = SolverRK4
	tr, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)
	for i := range tr.X {
		assert.InDelta(t, ref.X[i], tr.X[i], 1e-7)
	}
}

type stepCounter struct{ steps int }

func (s *stepCounter) OnStep(x dynamo.State, t float64) { s.steps++ }

func TestGenerate_EulerSolverWithObserver(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)
	opts := DefaultOptions()
	opts.Noise = 0

	ref, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)

	counter := &stepCounter{}
	opts.Solver = SolverEuler
	opts.Observers = []dynamo.Observer{counter}
	tr, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	require.NoError(t, err)

	assert.Equal(t, (len(grid)-1)*opts.Solve.Substeps, counter.steps)
	for i := range tr.X {
		assert.InDelta(t, ref.X[i], tr.X[i], 0.05)
	}
}

func TestGenerate_Errors(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)

	opts := DefaultOptions()
	opts.Noise = -1
	_, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	assert.True(t, errors.Is(err, dynamo.ErrParameterBounds))

	_, err = Generate(context.Background(), sys, dynamo.State{1}, grid, DefaultOptions())
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))

	opts = DefaultOptions()
	opts.Solver = "midpoint"
	_, err = Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
	assert.Error(t, err)
}

func TestTrajectory_ValidateMismatch(t *testing.T) {
	full := []float64{1, 2, 3}
	short := []float64{1, 2}
	tests := []struct {
		name     string
		tr       *Trajectory
		contains string
	}{
		{"v short", &Trajectory{Times: dynamo.Grid{0, 1, 2}, X: full, V: short, TrueX: full, TrueV: full}, "v has 2"},
		{"x and v short", &Trajectory{Times: dynamo.Grid{0, 1, 2}, X: short, V: short, TrueX: full, TrueV: full}, "x has 2"},
		{"true x missing", &Trajectory{Times: dynamo.Grid{0, 1, 2}, X: full, V: full, TrueV: full}, "true x has 0"},
		{"true v short", &Trajectory{Times: dynamo.Grid{0, 1, 2}, X: full, V: full, TrueX: full, TrueV: short}, "true v has 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// repeat so an unordered walk over the series would show up
			for i := 0; i < 20; i++ {
				err := tt.tr.Validate()
				require.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
				require.Contains(t, err.Error(), tt.contains)
			}
		})
	}

	ok := &Trajectory{Times: dynamo.Grid{0, 1, 2}, X: full, V: full, TrueX: full, TrueV: full}
	assert.NoError(t, ok.Validate())
}

func TestGenerate_NonFiniteNoise(t *testing.T) {
	sys, grid := referenceSetup(t, 0.7)

	for _, noise := range []float64{math.NaN(), math.Inf(1)} {
		opts := DefaultOptions()
		opts.Noise = noise
		_, err := Generate(context.Background(), sys, dynamo.State{1, 0}, grid, opts)
		assert.True(t, errors.Is(err, dynamo.ErrParameterBounds), "noise %g: got %v", noise, err)
	}
}
