// Package experiment turns a config into a trained hybrid model.
//
// Setup generates the synthetic trajectory and builds the model; Run trains it
// and evaluates the result. Each Experiment owns its data, model and optimizer,
// so independent experiments can run concurrently.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynfit/internal/analysis"
	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dataset"
	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/hybrid"
	"github.com/san-kum/dynfit/internal/metrics"
	"github.com/san-kum/dynfit/internal/physics"
	"github.com/san-kum/dynfit/internal/trainer"
)

var ErrNotSetup = errors.New("experiment: not set up")

type Result struct {
	Config     *config.Config
	Data       *dataset.Trajectory
	History    trainer.History
	Params     []float64
	Prediction []dynamo.State
	Damping    analysis.DampingEstimate
	Loss       analysis.LossSummary
	Metrics    map[string]float64
	Elapsed    time.Duration
}

type Option func(*Experiment)

func WithLogger(l *zap.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.reg = r }
}

// WithInitialParams starts training from p instead of a fresh initialization.
func WithInitialParams(p []float64) Option {
	return func(e *Experiment) { e.initial = append([]float64(nil), p...) }
}

// WithObserver forwards every training epoch to o.
func WithObserver(o trainer.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

type Experiment struct {
	cfg       *config.Config
	reg       *Registry
	log       *zap.Logger
	observers []trainer.Observer
	initial   []float64

	reference *physics.SpringMass
	data      *dataset.Trajectory
	fn        correction.Function
	dyn       *hybrid.Dynamics
	trainer   *trainer.Trainer
	refDrift  *metrics.EnergyDrift
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	e := &Experiment{
		cfg: cfg.Clone(),
		reg: NewRegistry(),
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// GenerateData integrates the reference oscillator described by cfg and adds
// observation noise.
func GenerateData(ctx context.Context, cfg *config.Config, observers ...dynamo.Observer) (*dataset.Trajectory, error) {
	sys, err := physics.NewSpringMass(cfg.Mass, cfg.Stiffness, cfg.Damping)
	if err != nil {
		return nil, err
	}
	grid, err := cfg.Grid()
	if err != nil {
		return nil, err
	}
	opts := cfg.DatasetOptions()
	opts.Observers = observers
	return dataset.Generate(ctx, sys, cfg.InitialState(), grid, opts)
}

func (e *Experiment) Setup(ctx context.Context) error {
	ref, err := physics.NewSpringMass(e.cfg.Mass, e.cfg.Stiffness, e.cfg.Damping)
	if err != nil {
		return err
	}
	e.reference = ref
	e.refDrift = metrics.NewEnergyDrift(ref)

	data, err := GenerateData(ctx, e.cfg, e.refDrift)
	if err != nil {
		return fmt.Errorf("generate data: %w", err)
	}
	e.data = data

	fn, err := e.reg.GetCorrection(e.cfg.Model, e.cfg.Seed)
	if err != nil {
		return err
	}
	if e.initial != nil {
		if err := correction.SetParams(fn, e.initial); err != nil {
			return fmt.Errorf("initial params: %w", err)
		}
	}
	e.fn = fn

	dyn, err := hybrid.New(e.cfg.Mass, e.cfg.Stiffness, fn)
	if err != nil {
		return err
	}
	e.dyn = dyn

	opts := []trainer.Option{trainer.WithLogger(e.log)}
	for _, o := range e.observers {
		opts = append(opts, trainer.WithObserver(o))
	}
	tr, err := trainer.New(dyn, data, e.cfg.TrainerConfig(), opts...)
	if err != nil {
		return err
	}
	e.trainer = tr

	e.log.Info("experiment ready",
		zap.Int("samples", data.Len()),
		zap.String("model", e.cfg.Model.Kind),
		zap.Int("params", dyn.NumParams()),
		zap.Float64("reference_energy_ratio", e.refDrift.Ratio()),
	)
	return nil
}

// Run trains the model and evaluates it. When training fails part way, the
// returned Result still carries the data and the epochs completed so far.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.trainer == nil {
		return nil, ErrNotSetup
	}

	start := time.Now()
	hist, err := e.trainer.Run(ctx)
	res := &Result{
		Config:  e.cfg,
		Data:    e.data,
		History: hist,
		Params:  append([]float64(nil), e.fn.Params()...),
		Metrics: map[string]float64{"reference_energy_ratio": e.refDrift.Ratio()},
	}
	if err != nil {
		res.Elapsed = time.Since(start)
		return res, err
	}

	if err := e.evaluate(ctx, res); err != nil {
		res.Elapsed = time.Since(start)
		return res, fmt.Errorf("evaluate: %w", err)
	}
	res.Elapsed = time.Since(start)

	e.log.Info("experiment finished",
		zap.Float64("final_loss", res.Loss.Last),
		zap.Float64("damping_estimate", res.Damping.Damping),
		zap.Float64("damping_true", e.cfg.Damping),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (e *Experiment) evaluate(ctx context.Context, res *Result) error {
	if len(res.History) > 0 {
		summary, err := analysis.SummarizeLoss(res.History.Losses())
		if err != nil {
			return err
		}
		res.Loss = summary
	}

	// A trajectory at rest has no velocity spread to regress on.
	est, err := analysis.EstimateDamping(e.fn, e.data.TrueX, e.data.TrueV)
	switch {
	case errors.Is(err, dynamo.ErrParameterBounds):
		e.log.Warn("damping estimate skipped", zap.Error(err))
	case err != nil:
		return err
	default:
		res.Damping = est
	}

	roll, err := e.trainer.Predict(ctx)
	if err != nil {
		return err
	}
	res.Prediction = roll.States

	for name, v := range metrics.Replay(roll.Times, roll.States, e.reg.DefaultMetrics(e.fn, e.reference)...) {
		res.Metrics[name] = v
	}
	res.Metrics["rmse_x"] = rmse(roll.States, 0, e.data.TrueX)
	res.Metrics["rmse_v"] = rmse(roll.States, 1, e.data.TrueV)
	return nil
}

func rmse(states []dynamo.State, idx int, truth []float64) float64 {
	pred := make([]float64, len(states))
	for i, s := range states {
		pred[i] = s[idx]
	}
	return floats.Distance(pred, truth, 2) / math.Sqrt(float64(len(pred)))
}

func (e *Experiment) Data() *dataset.Trajectory { return e.data }
func (e *Experiment) Trainer() *trainer.Trainer { return e.trainer }
