// Package trainer fits the correction function of a hybrid model to an
// observed trajectory by differentiating through the RK4 unroll.
//
// A [Trainer] owns the model parameters, the optimizer state and the gradient
// buffer for its whole life; nothing else may mutate the parameters while
// [Trainer.Run] is in progress.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynfit/internal/dataset"
	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/hybrid"
	"github.com/san-kum/dynfit/internal/integrators"
	"github.com/san-kum/dynfit/internal/optim"
)

var ErrAlreadyRun = errors.New("trainer: run already started")

type Phase int

const (
	Initialized Phase = iota
	Training
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Initialized:
		return "initialized"
	case Training:
		return "training"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

type Option func(*Trainer)

func WithLogger(l *zap.Logger) Option {
	return func(t *Trainer) { t.log = l }
}

func WithObserver(o Observer) Option {
	return func(t *Trainer) { t.observers = append(t.observers, o) }
}

type Trainer struct {
	dyn   *hybrid.Dynamics
	data  *dataset.Trajectory
	cfg   Config
	opt   *optim.Adam
	integ *integrators.SensitivityRK4

	grad      []float64
	phase     Phase
	history   History
	log       *zap.Logger
	observers []Observer
}

func New(dyn *hybrid.Dynamics, data *dataset.Trajectory, cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("trainer config: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("training data: %w", err)
	}

	t := &Trainer{
		dyn:   dyn,
		data:  data,
		cfg:   cfg,
		opt:   cfg.optimizer(),
		integ: integrators.NewSensitivityRK4(),
		grad:  make([]float64, dyn.NumParams()),
		log:   zap.NewNop(),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *Trainer) Phase() Phase { return t.phase }

func (t *Trainer) History() History {
	out := make(History, len(t.history))
	copy(out, t.history)
	return out
}

// Predict integrates the current model from the noisy initial condition.
func (t *Trainer) Predict(ctx context.Context) (*integrators.Rollout, error) {
	return t.integ.Unroll(ctx, t.dyn, t.data.Initial(), t.data.Times)
}

// Loss runs one forward pass without touching gradients or parameters.
func (t *Trainer) Loss(ctx context.Context) (float64, error) {
	roll, err := t.Predict(ctx)
	if err != nil {
		return 0, err
	}
	loss := t.loss(roll)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, dynamo.ErrDiverged
	}
	return loss, nil
}

// Gradient returns the loss and a copy of dLoss/dθ at the current parameters.
func (t *Trainer) Gradient(ctx context.Context) (float64, []float64, error) {
	loss, err := t.forwardBackward(ctx)
	if err != nil {
		return 0, nil, err
	}
	return loss, append([]float64(nil), t.grad...), nil
}

// Run trains for the configured number of epochs. On failure it returns the
// epochs recorded so far together with the error; the failed epoch is not
// recorded and its update is not applied.
func (t *Trainer) Run(ctx context.Context) (History, error) {
	if t.phase != Initialized {
		return t.History(), ErrAlreadyRun
	}
	t.phase = Training
	t.log.Info("training started",
		zap.Int("epochs", t.cfg.Epochs),
		zap.Float64("learning_rate", t.cfg.LearningRate),
		zap.Int("params", len(t.grad)),
		zap.Int("samples", t.data.Len()),
	)

	best := math.Inf(1)
	stale := 0
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			t.phase = Failed
			return t.History(), err
		}

		e, err := t.epoch(ctx, epoch)
		if err != nil {
			t.phase = Failed
			t.log.Error("epoch failed", zap.Int("epoch", epoch), zap.Error(err))
			return t.History(), fmt.Errorf("epoch %d: %w", epoch, err)
		}

		t.history = append(t.history, e)
		for _, o := range t.observers {
			o.OnEpoch(e)
		}
		t.log.Debug("epoch", zap.Int("epoch", e.Index), zap.Float64("loss", e.Loss), zap.Float64("grad_norm", e.GradNorm))

		if t.cfg.Patience > 0 {
			if e.Loss < best-t.cfg.MinDelta {
				best, stale = e.Loss, 0
			} else {
				stale++
			}
			if stale >= t.cfg.Patience {
				t.log.Info("loss plateaued", zap.Int("epoch", e.Index), zap.Float64("best", best))
				break
			}
		}
	}

	t.phase = Done
	if last, ok := t.history.Last(); ok {
		t.log.Info("training finished", zap.Int("epochs", len(t.history)), zap.Float64("loss", last.Loss))
	}
	return t.History(), nil
}

func (t *Trainer) epoch(ctx context.Context, index int) (Epoch, error) {
	loss, err := t.forwardBackward(ctx)
	if err != nil {
		return Epoch{}, err
	}

	norm := optim.ClipNorm(t.grad, t.cfg.GradClip)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Epoch{}, dynamo.ErrDiverged
	}
	if err := t.opt.Step(t.dyn.Correction().Params(), t.grad); err != nil {
		return Epoch{}, err
	}
	return Epoch{Index: index, Loss: loss, GradNorm: norm}, nil
}

func (t *Trainer) forwardBackward(ctx context.Context) (float64, error) {
	clear(t.grad)

	roll, err := t.Predict(ctx)
	if err != nil {
		return 0, err
	}

	loss := t.loss(roll)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, dynamo.ErrDiverged
	}
	if len(t.grad) == 0 {
		return loss, nil
	}

	// d/dθ [½·mean(rx²) + ½·mean(rv²)] = Σ Sᵢᵀ·rᵢ / N
	n := float64(t.data.Len())
	g := mat.NewVecDense(len(t.grad), t.grad)
	r := mat.NewVecDense(2, nil)
	tmp := mat.NewVecDense(len(t.grad), nil)
	for i, s := range roll.States {
		r.SetVec(0, s[0]-t.data.X[i])
		r.SetVec(1, s[1]-t.data.V[i])
		tmp.MulVec(roll.Sens[i].T(), r)
		g.AddScaledVec(g, 1/n, tmp)
	}
	return loss, nil
}

func (t *Trainer) loss(roll *integrators.Rollout) float64 {
	var sx, sv float64
	for i, s := range roll.States {
		dx := s[0] - t.data.X[i]
		dv := s[1] - t.data.V[i]
		sx += dx * dx
		sv += dv * dv
	}
	n := float64(len(roll.States))
	return 0.5*sx/n + 0.5*sv/n
}
