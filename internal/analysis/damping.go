package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dynamo"
)

type DampingEstimate struct {
	Damping   float64 `json:"damping"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	Samples   int     `json:"samples"`
}

// EstimateDamping regresses the correction output on velocity over the given
// states. The hybrid force is -N/m, so the slope is the damping coefficient
// itself and does not depend on the mass.
func EstimateDamping(fn correction.Function, x, v []float64) (DampingEstimate, error) {
	if len(x) != len(v) {
		return DampingEstimate{}, fmt.Errorf("%w: %d positions, %d velocities", dynamo.ErrDimensionMismatch, len(x), len(v))
	}
	if len(v) < 2 {
		return DampingEstimate{}, fmt.Errorf("%w: need at least two samples, got %d", dynamo.ErrParameterBounds, len(v))
	}
	if stat.Variance(v, nil) == 0 {
		return DampingEstimate{}, fmt.Errorf("%w: velocity is constant", dynamo.ErrParameterBounds)
	}

	n := make([]float64, len(v))
	for i := range v {
		n[i] = fn.Eval(x[i], v[i])
	}

	alpha, beta := stat.LinearRegression(v, n, nil, false)
	return DampingEstimate{
		Damping:   beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(v, n, nil, alpha, beta),
		Samples:   len(v),
	}, nil
}
