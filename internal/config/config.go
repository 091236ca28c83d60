package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dataset"
	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/physics"
	"github.com/san-kum/dynfit/internal/trainer"
)

const (
	DefaultStart   = 0.0
	DefaultEnd     = 10.0
	DefaultSamples = 200
	DefaultNoise   = 0.1
	DefaultSeed    = 42
	DefaultInitX   = 1.0
	DefaultInitV   = 0.0
)

type Config struct {
	Mass      float64     `yaml:"mass"`
	Stiffness float64     `yaml:"stiffness"`
	Damping   float64     `yaml:"damping"`
	Init      InitConfig  `yaml:"init"`
	Time      TimeConfig  `yaml:"time"`
	Noise     float64     `yaml:"noise"`
	Solver    string      `yaml:"solver"`
	Model     ModelConfig `yaml:"model"`
	Train     TrainConfig `yaml:"train"`
	Seed      uint64      `yaml:"seed"`
}

type InitConfig struct {
	X float64 `yaml:"x"`
	V float64 `yaml:"v"`
}

type TimeConfig struct {
	Start   float64 `yaml:"start"`
	End     float64 `yaml:"end"`
	Samples int     `yaml:"samples"`
}

type ModelConfig struct {
	Kind       string `yaml:"kind"`
	Hidden     int    `yaml:"hidden"`
	Layers     int    `yaml:"layers"`
	ZeroOutput bool   `yaml:"zero_output"`
}

type TrainConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	Beta1        float64 `yaml:"beta1"`
	Beta2        float64 `yaml:"beta2"`
	Eps          float64 `yaml:"eps"`
	GradClip     float64 `yaml:"grad_clip"`
	Patience     int     `yaml:"patience"`
	MinDelta     float64 `yaml:"min_delta"`
}

func DefaultConfig() *Config {
	tc := trainer.DefaultConfig()
	return &Config{
		Mass:      physics.DefaultMass,
		Stiffness: physics.DefaultStiffness,
		Damping:   physics.DefaultDamping,
		Init:      InitConfig{X: DefaultInitX, V: DefaultInitV},
		Time:      TimeConfig{Start: DefaultStart, End: DefaultEnd, Samples: DefaultSamples},
		Noise:     DefaultNoise,
		Solver:    dataset.SolverRK45,
		Model: ModelConfig{
			Kind:   "mlp",
			Hidden: correction.DefaultHidden,
			Layers: correction.DefaultLayers,
		},
		Train: TrainConfig{
			LearningRate: tc.LearningRate,
			Epochs:       tc.Epochs,
			Beta1:        tc.Beta1,
			Beta2:        tc.Beta2,
			Eps:          tc.Eps,
		},
		Seed: DefaultSeed,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// Validate reports the first invalid field. It checks everything that would
// otherwise fail only after data generation has started.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"mass", c.Mass},
		{"stiffness", c.Stiffness},
		{"damping", c.Damping},
		{"noise", c.Noise},
		{"init.x", c.Init.X},
		{"init.v", c.Init.V},
		{"time.start", c.Time.Start},
		{"time.end", c.Time.End},
		{"train.learning_rate", c.Train.LearningRate},
		{"train.grad_clip", c.Train.GradClip},
		{"train.min_delta", c.Train.MinDelta},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %g", dynamo.ErrParameterBounds, f.name, f.value)
		}
	}
	if !(c.Mass > 0) {
		return fmt.Errorf("%w: mass must be positive, got %g", dynamo.ErrParameterBounds, c.Mass)
	}
	if !(c.Stiffness >= 0) || !(c.Damping >= 0) {
		return fmt.Errorf("%w: stiffness and damping must be non-negative", dynamo.ErrParameterBounds)
	}
	if !(c.Noise >= 0) {
		return fmt.Errorf("%w: noise must be non-negative, got %g", dynamo.ErrParameterBounds, c.Noise)
	}
	if _, err := c.Grid(); err != nil {
		return err
	}
	switch c.Solver {
	case dataset.SolverRK45, dataset.SolverRK4, dataset.SolverEuler:
	default:
		return fmt.Errorf("unknown solver: %q", c.Solver)
	}
	switch c.Model.Kind {
	case "mlp":
		if c.Model.Hidden < 1 || c.Model.Layers < 1 {
			return fmt.Errorf("%w: mlp needs hidden >= 1 and layers >= 1", dynamo.ErrParameterBounds)
		}
	case "linear", "zero":
	default:
		return fmt.Errorf("unknown model kind: %q", c.Model.Kind)
	}
	return c.TrainerConfig().Validate()
}

func (c *Config) Grid() (dynamo.Grid, error) {
	return dynamo.NewUniformGrid(c.Time.Start, c.Time.End, c.Time.Samples)
}

func (c *Config) InitialState() dynamo.State {
	return dynamo.State{c.Init.X, c.Init.V}
}

func (c *Config) DatasetOptions() dataset.Options {
	opts := dataset.DefaultOptions()
	opts.Noise = c.Noise
	opts.Seed = c.Seed
	opts.Solver = c.Solver
	return opts
}

func (c *Config) TrainerConfig() trainer.Config {
	return trainer.Config{
		LearningRate: c.Train.LearningRate,
		Epochs:       c.Train.Epochs,
		Beta1:        c.Train.Beta1,
		Beta2:        c.Train.Beta2,
		Eps:          c.Train.Eps,
		GradClip:     c.Train.GradClip,
		Patience:     c.Train.Patience,
		MinDelta:     c.Train.MinDelta,
	}
}

func (c *Config) MLPConfig() correction.MLPConfig {
	return correction.MLPConfig{Hidden: c.Model.Hidden, Layers: c.Model.Layers, Seed: c.Seed}
}
