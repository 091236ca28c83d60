package trainer

import (
	"fmt"

	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/optim"
)

const (
	DefaultLearningRate = 1e-2
	DefaultEpochs       = 100
)

type Config struct {
	LearningRate float64
	Epochs       int
	Beta1        float64
	Beta2        float64
	Eps          float64

	// GradClip caps the global gradient norm; 0 disables clipping.
	GradClip float64
	// Patience stops training after this many epochs without the loss
	// improving by more than MinDelta; 0 always runs all epochs.
	Patience int
	MinDelta float64
}

func DefaultConfig() Config {
	return Config{
		LearningRate: DefaultLearningRate,
		Epochs:       DefaultEpochs,
		Beta1:        optim.DefaultBeta1,
		Beta2:        optim.DefaultBeta2,
		Eps:          optim.DefaultEps,
	}
}

func (c Config) Validate() error {
	if c.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be positive, got %d", dynamo.ErrParameterBounds, c.Epochs)
	}
	if !(c.GradClip >= 0) {
		return fmt.Errorf("%w: grad clip must be non-negative, got %g", dynamo.ErrParameterBounds, c.GradClip)
	}
	if c.Patience < 0 || !(c.MinDelta >= 0) {
		return fmt.Errorf("%w: patience and min delta must be non-negative", dynamo.ErrParameterBounds)
	}
	return c.optimizer().Validate()
}

func (c Config) optimizer() *optim.Adam {
	return &optim.Adam{
		LearningRate: c.LearningRate,
		Beta1:        c.Beta1,
		Beta2:        c.Beta2,
		Eps:          c.Eps,
	}
}
