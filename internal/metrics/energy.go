package metrics

import (
	"math"

	"github.com/san-kum/dynfit/internal/dynamo"
)

// EnergyDrift tracks the largest relative departure from the initial energy.
// For a conservative system it measures solver error; with damping it
// measures dissipation.
type EnergyDrift struct {
	name    string
	sys     dynamo.Hamiltonian
	initial float64
	final   float64
	drift   float64
	samples int
}

func NewEnergyDrift(sys dynamo.Hamiltonian) *EnergyDrift {
	return &EnergyDrift{name: "energy_drift", sys: sys}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) OnStep(x dynamo.State, t float64) {
	energy := e.sys.Energy(x)
	if e.samples == 0 {
		e.initial = energy
	}
	e.final = energy
	e.samples++

	if e.initial != 0 {
		e.drift = math.Max(e.drift, math.Abs(energy-e.initial)/math.Abs(e.initial))
	}
}

func (e *EnergyDrift) Value() float64 { return e.drift }

// Ratio is final over initial energy, or 1 before any non-zero sample.
func (e *EnergyDrift) Ratio() float64 {
	if e.initial == 0 {
		return 1
	}
	return e.final / e.initial
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.final = 0
	e.drift = 0
	e.samples = 0
}
