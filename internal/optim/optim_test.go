package optim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynfit/internal/dynamo"
)

func TestAdam_MinimizesQuadratic(t *testing.T) {
	opt := NewAdam(0.05)
	require.NoError(t, opt.Validate())

	params := []float64{3, -2}
	grad := make([]float64, 2)
	for i := 0; i < 2000; i++ {
		grad[0] = 2 * (params[0] - 1)
		grad[1] = 2 * (params[1] + 0.5)
		require.NoError(t, opt.Step(params, grad))
	}

	assert.InDelta(t, 1.0, params[0], 1e-3)
	assert.InDelta(t, -0.5, params[1], 1e-3)
	assert.Equal(t, 2000, opt.Steps())
}

func TestAdam_FirstStepIsLearningRate(t *testing.T) {
	opt := NewAdam(0.01)
	params := []float64{0, 0}

	require.NoError(t, opt.Step(params, []float64{5, -0.001}))

	// bias correction makes the first update ±lr regardless of gradient scale
	assert.InDelta(t, -0.01, params[0], 1e-9)
	assert.InDelta(t, 0.01, params[1], 1e-6)
}

func TestAdam_Errors(t *testing.T) {
	opt := NewAdam(0.01)
	err := opt.Step([]float64{1, 2}, []float64{1})
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))

	tests := []struct {
		name string
		opt  *Adam
	}{
		{"zero lr", &Adam{LearningRate: 0, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}},
		{"beta1 one", &Adam{LearningRate: 0.1, Beta1: 1, Beta2: 0.999, Eps: 1e-8}},
		{"zero eps", &Adam{LearningRate: 0.1, Beta1: 0.9, Beta2: 0.999, Eps: 0}},
		{"nan lr", &Adam{LearningRate: math.NaN(), Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}},
		{"nan beta2", &Adam{LearningRate: 0.1, Beta1: 0.9, Beta2: math.NaN(), Eps: 1e-8}},
		{"nan eps", &Adam{LearningRate: 0.1, Beta1: 0.9, Beta2: 0.999, Eps: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.opt.Validate(), dynamo.ErrParameterBounds))
		})
	}
}

func TestClipNorm(t *testing.T) {
	g := []float64{3, 4}
	norm := ClipNorm(g, 1)
	assert.Equal(t, 5.0, norm)
	assert.InDelta(t, 1.0, math.Hypot(g[0], g[1]), 1e-12)

	g = []float64{3, 4}
	ClipNorm(g, 0)
	assert.Equal(t, []float64{3, 4}, g)
}

func TestGridSearch(t *testing.T) {
	gs := NewGridSearch(
		[]string{"a", "b"},
		[][]float64{{0, 1, 2}, {-1, 0, 1}},
		3,
	)

	best, score, trials, err := gs.Search(context.Background(), func(ctx context.Context, p map[string]float64) (float64, error) {
		if p["a"] == 0 && p["b"] == 0 {
			return -100, errors.New("diverged")
		}
		return (p["a"]-1)*(p["a"]-1) + p["b"]*p["b"], nil
	})
	require.NoError(t, err)

	assert.Len(t, trials, 9)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, map[string]float64{"a": 1, "b": 0}, best)

	ranked := Ranked(trials)
	assert.Len(t, ranked, 8)
	assert.Equal(t, 0.0, ranked[0].Score)
}

func TestGridSearch_Canceled(t *testing.T) {
	gs := NewGridSearch([]string{"a"}, [][]float64{{1, 2}}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := gs.Search(ctx, func(ctx context.Context, p map[string]float64) (float64, error) {
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
