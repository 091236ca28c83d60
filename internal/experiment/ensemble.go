package experiment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/dynfit/internal/config"
)

// Ensemble repeats one configuration over consecutive seeds. The seed drives
// both the observation noise and the correction's initialization.
type Ensemble struct {
	base      *config.Config
	numRuns   int
	seedStart uint64
	workers   int
}

func NewEnsemble(base *config.Config, numRuns int, seedStart uint64, workers int) *Ensemble {
	return &Ensemble{base: base, numRuns: numRuns, seedStart: seedStart, workers: max(workers, 1)}
}

// Run trains every member and returns results in seed order. A failed member
// leaves a partial Result and its error at the same index; only cancellation
// aborts the whole ensemble.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, []error, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i := 0; i < e.numRuns; i++ {
		eg.Go(func() error {
			cfg := e.base.Clone()
			cfg.Seed = e.seedStart + uint64(i)

			exp, err := New(cfg)
			if err != nil {
				errs[i] = err
				return nil
			}
			if err := exp.Setup(ctx); err != nil {
				errs[i] = err
				return ctx.Err()
			}
			results[i], errs[i] = exp.Run(ctx)
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	return results, errs, nil
}
