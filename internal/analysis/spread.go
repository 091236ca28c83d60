package analysis

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Spread describes one quantity across repeated runs, such as the damping
// estimate over several seeds.
type Spread struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func SummarizeSpread(values []float64) (Spread, error) {
	data := stats.Float64Data(values)

	mean, err := data.Mean()
	if err != nil {
		return Spread{}, fmt.Errorf("summarize spread: %w", err)
	}
	var sd float64
	if len(values) > 1 {
		sd, _ = data.StandardDeviationSample()
	}
	lo, _ := data.Min()
	hi, _ := data.Max()

	return Spread{N: len(values), Mean: mean, StdDev: sd, Min: lo, Max: hi}, nil
}
