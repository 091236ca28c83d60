package optim

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Objective builds and runs one independent experiment for a parameter set and
// returns the score to minimize.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type Trial struct {
	Params map[string]float64
	Score  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64, workers int) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: max(workers, 1)}
}

// Search evaluates every grid point and returns the best parameters, its score
// and all trials in grid order. Failed trials are kept with Err set and never win.
func (g *GridSearch) Search(ctx context.Context, objective Objective) (map[string]float64, float64, []Trial, error) {
	var points []map[string]float64
	g.enumerate(0, make(map[string]float64), &points)

	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, p := range points {
		eg.Go(func() error {
			score, err := objective(ctx, p)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			trials[i] = Trial{Params: p, Score: score, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, nil, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for _, tr := range trials {
		if tr.Err == nil && tr.Score < best {
			best = tr.Score
			bestParams = tr.Params
		}
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.enumerate(depth+1, newParams, out)
	}
}

// Ranked returns successful trials sorted by ascending score.
func Ranked(trials []Trial) []Trial {
	ok := make([]Trial, 0, len(trials))
	for _, tr := range trials {
		if tr.Err == nil {
			ok = append(ok, tr)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Score < ok[j].Score })
	return ok
}
