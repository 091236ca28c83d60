package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynfit/internal/dynamo"
)

const (
	DefaultMass      = 1.0
	DefaultStiffness = 5.0
	DefaultDamping   = 0.7
)

// SpringMass is the fully known damped oscillator m·x'' + c·x' + k·x = 0.
// It is only used to synthesize observations; the damping never leaves this type.
type SpringMass struct {
	mass      float64
	stiffness float64
	damping   float64
}

func NewSpringMass(mass, stiffness, damping float64) (*SpringMass, error) {
	if !(mass > 0) || math.IsInf(mass, 1) {
		return nil, fmt.Errorf("%w: mass must be positive, got %f", dynamo.ErrParameterBounds, mass)
	}
	if !(stiffness >= 0) || math.IsInf(stiffness, 1) {
		return nil, fmt.Errorf("%w: stiffness must be non-negative, got %f", dynamo.ErrParameterBounds, stiffness)
	}
	if !(damping >= 0) || math.IsInf(damping, 1) {
		return nil, fmt.Errorf("%w: damping must be non-negative, got %f", dynamo.ErrParameterBounds, damping)
	}
	return &SpringMass{mass: mass, stiffness: stiffness, damping: damping}, nil
}

func (s *SpringMass) StateDim() int { return 2 }

func (s *SpringMass) Mass() float64      { return s.mass }
func (s *SpringMass) Stiffness() float64 { return s.stiffness }

func (s *SpringMass) Derive(x dynamo.State, t float64) dynamo.State {
	pos, vel := x[0], x[1]
	return dynamo.State{
		vel,
		-(s.damping/s.mass)*vel - (s.stiffness/s.mass)*pos,
	}
}

func (s *SpringMass) Energy(x dynamo.State) float64 {
	pos, vel := x[0], x[1]
	return 0.5*s.mass*vel*vel + 0.5*s.stiffness*pos*pos
}
