package analysis

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

type LossSummary struct {
	Epochs   int     `json:"epochs"`
	First    float64 `json:"first"`
	Last     float64 `json:"last"`
	Min      float64 `json:"min"`
	MinEpoch int     `json:"min_epoch"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
}

// Improvement is the relative reduction from the first to the last epoch.
func (s LossSummary) Improvement() float64 {
	if s.First == 0 {
		return 0
	}
	return (s.First - s.Last) / s.First
}

func SummarizeLoss(losses []float64) (LossSummary, error) {
	data := stats.Float64Data(losses)

	minimum, err := data.Min()
	if err != nil {
		return LossSummary{}, fmt.Errorf("summarize loss: %w", err)
	}
	mean, err := data.Mean()
	if err != nil {
		return LossSummary{}, fmt.Errorf("summarize loss: %w", err)
	}
	median, err := data.Median()
	if err != nil {
		return LossSummary{}, fmt.Errorf("summarize loss: %w", err)
	}

	minEpoch := 0
	for i, l := range losses {
		if l == minimum {
			minEpoch = i
			break
		}
	}

	return LossSummary{
		Epochs:   len(losses),
		First:    losses[0],
		Last:     losses[len(losses)-1],
		Min:      minimum,
		MinEpoch: minEpoch,
		Mean:     mean,
		Median:   median,
	}, nil
}
