package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/dynfit/internal/dynamo"
)

type simpleDynamics struct{}

func (s *simpleDynamics) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (s *simpleDynamics) StateDim() int { return 2 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestEulerFirstOrder(t *testing.T) {
	dyn := &simpleDynamics{}
	x := NewEuler().Step(dyn, dynamo.State{1.0, 0.0}, 0, 0.1)

	if x[0] != 1.0 || math.Abs(x[1]+0.1) > 1e-15 {
		t.Errorf("expected [1, -0.1], got %v", x)
	}
}

func TestRK4_ReusedAcrossDimensions(t *testing.T) {
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	next := integ.Step(&simpleDynamics{}, x, 0, 0.1)
	if x[0] != 1.0 || x[1] != 0.0 {
		t.Errorf("expected input state untouched, got %v", x)
	}

	// one step of x' = -x, exact to fifth order
	decay := integ.Step(&decayDynamics{}, dynamo.State{1.0}, 0, 0.1)
	if len(decay) != 1 {
		t.Fatalf("expected 1-dimensional state, got %d", len(decay))
	}
	if math.Abs(decay[0]-math.Exp(-0.1)) > 1e-6 {
		t.Errorf("expected %.8f, got %.8f", math.Exp(-0.1), decay[0])
	}

	again := integ.Step(&simpleDynamics{}, x, 0, 0.1)
	if again[0] != next[0] || again[1] != next[1] {
		t.Errorf("expected identical steps, got %v and %v", next, again)
	}
}

type decayDynamics struct{}

func (decayDynamics) Derive(x dynamo.State, t float64) dynamo.State { return dynamo.State{-x[0]} }
func (decayDynamics) StateDim() int                                 { return 1 }
