package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/metrics"
)

// CorrectionFactory builds a fresh correction function from the model section
// of a config. seed drives any random initialization.
type CorrectionFactory func(cfg config.ModelConfig, seed uint64) (correction.Function, error)

type Registry struct {
	corrections map[string]CorrectionFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		corrections: make(map[string]CorrectionFactory),
	}

	r.corrections["mlp"] = func(cfg config.ModelConfig, seed uint64) (correction.Function, error) {
		mlp, err := correction.NewMLP(correction.MLPConfig{Hidden: cfg.Hidden, Layers: cfg.Layers, Seed: seed})
		if err != nil {
			return nil, err
		}
		if cfg.ZeroOutput {
			mlp.ZeroOutput()
		}
		return mlp, nil
	}
	r.corrections["linear"] = func(cfg config.ModelConfig, seed uint64) (correction.Function, error) {
		return correction.NewLinear(0, 0, 0), nil
	}
	r.corrections["zero"] = func(cfg config.ModelConfig, seed uint64) (correction.Function, error) {
		return correction.Zero{}, nil
	}

	return r
}

func (r *Registry) Register(kind string, f CorrectionFactory) {
	r.corrections[kind] = f
}

func (r *Registry) GetCorrection(cfg config.ModelConfig, seed uint64) (correction.Function, error) {
	fn, ok := r.corrections[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown model kind: %s", cfg.Kind)
	}
	return fn(cfg, seed)
}

func (r *Registry) ListCorrections() []string {
	names := make([]string, 0, len(r.corrections))
	for name := range r.corrections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are evaluated along the trained model's prediction.
func (r *Registry) DefaultMetrics(fn correction.Function, sys dynamo.Hamiltonian) []metrics.Metric {
	return []metrics.Metric{
		metrics.NewEnergyDrift(sys),
		metrics.NewStability(1e3),
		metrics.NewCorrectionEffort(fn),
	}
}
