package integrators

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dynfit/internal/dynamo"
)

// Solve integrates dyn from x0 and returns one state per grid point, states[0] == x0.
//
// Adaptive integrators step freely between grid points but never step past one.
// Fixed-step integrators take cfg.Substeps equal steps per grid interval.
func Solve(ctx context.Context, dyn dynamo.System, integ dynamo.Integrator, x0 dynamo.State, grid dynamo.Grid, cfg dynamo.SolveConfig, observers ...dynamo.Observer) ([]dynamo.State, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if len(x0) != dyn.StateDim() {
		return nil, fmt.Errorf("%w: initial state has %d entries, system expects %d", dynamo.ErrDimensionMismatch, len(x0), dyn.StateDim())
	}

	if !x0.IsValid() {
		return nil, fmt.Errorf("%w: initial state %v", dynamo.ErrInvalidState, x0)
	}

	states := make([]dynamo.State, len(grid))
	states[0] = x0.Clone()

	adaptive, isAdaptive := integ.(dynamo.AdaptiveIntegrator)
	substeps := max(cfg.Substeps, 1)

	x := x0.Clone()
	dt := grid.Dt(0)
	for i := 0; i < len(grid)-1; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var err error
		if isAdaptive {
			x, dt, err = advanceAdaptive(adaptive, dyn, x, grid[i], grid[i+1], dt, cfg, observers)
		} else {
			h := grid.Dt(i) / float64(substeps)
			for s := 0; s < substeps; s++ {
				t := grid[i] + float64(s)*h
				x = integ.Step(dyn, x, t, h)
				for _, obs := range observers {
					obs.OnStep(x, t+h)
				}
			}
		}
		if err == nil && !x.IsValid() {
			err = dynamo.ErrDiverged
		}
		if err != nil {
			return nil, &dynamo.SimulationError{Step: i, Time: grid[i], State: x, Wrapped: err}
		}
		states[i+1] = x.Clone()
	}

	return states, nil
}

func advanceAdaptive(integ dynamo.AdaptiveIntegrator, dyn dynamo.System, x dynamo.State, t, target, dt float64, cfg dynamo.SolveConfig, observers []dynamo.Observer) (dynamo.State, float64, error) {
	span := target - t
	for t < target {
		remaining := target - t
		last := dt >= remaining || remaining <= 1e-12*span
		h := dt
		if last {
			h = remaining
		}

		xNew, dtNew, err := integ.StepAdaptive(dyn, x, t, h, cfg.Tolerance)
		if errors.Is(err, dynamo.ErrStepRejected) {
			if dtNew < cfg.MinDt {
				return x, dt, dynamo.ErrStepTooSmall
			}
			dt = dtNew
			continue
		}
		if err != nil {
			return x, dt, err
		}

		x = xNew
		if last {
			t = target
		} else {
			t += h
			dt = dtNew
		}
		for _, obs := range observers {
			obs.OnStep(x, t)
		}
	}
	return x, math.Max(dt, cfg.MinDt), nil
}
