package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dynamo"
)

func TestEstimateDamping_Linear(t *testing.T) {
	n := 100
	x := make([]float64, n)
	v := make([]float64, n)
	for i := range v {
		ti := float64(i) * 0.1
		x[i] = math.Cos(2 * ti)
		v[i] = -2 * math.Sin(2*ti)
	}

	est, err := EstimateDamping(correction.NewLinear(0, 0.7, 0.05), x, v)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, est.Damping, 1e-12)
	assert.InDelta(t, 0.05, est.Intercept, 1e-12)
	assert.InDelta(t, 1.0, est.RSquared, 1e-12)
	assert.Equal(t, n, est.Samples)
}

func TestEstimateDamping_ZeroCorrection(t *testing.T) {
	est, err := EstimateDamping(correction.Zero{}, []float64{0, 1, 2}, []float64{1, -1, 0.5})
	require.NoError(t, err)
	assert.Zero(t, est.Damping)
	assert.Zero(t, est.Intercept)
}

func TestEstimateDamping_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		x, v   []float64
		target error
	}{
		{"length mismatch", []float64{0, 1}, []float64{0}, dynamo.ErrDimensionMismatch},
		{"single sample", []float64{0}, []float64{1}, dynamo.ErrParameterBounds},
		{"constant velocity", []float64{0, 1, 2}, []float64{1, 1, 1}, dynamo.ErrParameterBounds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateDamping(correction.Zero{}, tt.x, tt.v)
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestSummarizeLoss(t *testing.T) {
	s, err := SummarizeLoss([]float64{4, 2, 1, 1, 2})
	require.NoError(t, err)

	assert.Equal(t, 5, s.Epochs)
	assert.Equal(t, 4.0, s.First)
	assert.Equal(t, 2.0, s.Last)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 2, s.MinEpoch)
	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	assert.Equal(t, 2.0, s.Median)
	assert.InDelta(t, 0.5, s.Improvement(), 1e-12)
}

func TestSummarizeLoss_Empty(t *testing.T) {
	_, err := SummarizeLoss(nil)
	assert.ErrorIs(t, err, stats.ErrEmptyInput)
}

func TestSummarizeSpread(t *testing.T) {
	s, err := SummarizeSpread([]float64{0.6, 0.7, 0.8})
	require.NoError(t, err)

	assert.Equal(t, 3, s.N)
	assert.InDelta(t, 0.7, s.Mean, 1e-12)
	assert.InDelta(t, 0.1, s.StdDev, 1e-12)
	assert.Equal(t, 0.6, s.Min)
	assert.Equal(t, 0.8, s.Max)

	single, err := SummarizeSpread([]float64{0.5})
	require.NoError(t, err)
	assert.Zero(t, single.StdDev)

	_, err = SummarizeSpread(nil)
	assert.ErrorIs(t, err, stats.ErrEmptyInput)
}
