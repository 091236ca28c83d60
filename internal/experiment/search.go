package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/optim"
)

const (
	ParamLearningRate = "learning_rate"
	ParamHidden       = "hidden"
)

// Search trains one independent experiment per (learning rate, hidden width)
// pair and ranks them by final loss. A pair whose training fails is reported
// with its error and does not stop the others.
func Search(ctx context.Context, base *config.Config, rates []float64, hidden []int, workers int) (map[string]float64, float64, []optim.Trial, error) {
	widths := make([]float64, len(hidden))
	for i, h := range hidden {
		widths[i] = float64(h)
	}

	gs := optim.NewGridSearch([]string{ParamLearningRate, ParamHidden}, [][]float64{rates, widths}, workers)
	return gs.Search(ctx, func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := base.Clone()
		cfg.Train.LearningRate = params[ParamLearningRate]
		cfg.Model.Hidden = int(params[ParamHidden])

		exp, err := New(cfg)
		if err != nil {
			return 0, err
		}
		if err := exp.Setup(ctx); err != nil {
			return 0, err
		}
		res, err := exp.Run(ctx)
		if err != nil {
			return 0, err
		}
		last, ok := res.History.Last()
		if !ok {
			return 0, fmt.Errorf("no epochs recorded")
		}
		return last.Loss, nil
	})
}
