package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dynfit/internal/dynamo"
)

// Stability is the fraction of visited states that are finite and whose
// largest component stays within the bound. 1 means the fit never blew up.
type Stability struct {
	bound   float64
	visited int
	escaped int
}

func NewStability(bound float64) *Stability {
	return &Stability{bound: bound}
}

func (*Stability) Name() string { return "stability" }

func (s *Stability) OnStep(x dynamo.State, t float64) {
	s.visited++
	if !x.IsValid() || floats.Norm(x, math.Inf(1)) > s.bound {
		s.escaped++
	}
}

func (s *Stability) Value() float64 {
	if s.visited == 0 {
		return 1
	}
	return float64(s.visited-s.escaped) / float64(s.visited)
}

func (s *Stability) Reset() { s.visited, s.escaped = 0, 0 }
