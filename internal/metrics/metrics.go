// Package metrics accumulates scalar summaries of a trajectory step by step.
//
// Every metric is a dynamo.Observer, so it can be attached to integrators.Solve
// directly or fed an already computed trajectory with Replay.
package metrics

import "github.com/san-kum/dynfit/internal/dynamo"

type Metric interface {
	dynamo.Observer
	Name() string
	Value() float64
	Reset()
}

// Replay feeds states to each metric in order and returns their values by name.
func Replay(times dynamo.Grid, states []dynamo.State, ms ...Metric) map[string]float64 {
	for i, x := range states {
		for _, m := range ms {
			m.OnStep(x, times[i])
		}
	}
	return Values(ms...)
}

func Values(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
