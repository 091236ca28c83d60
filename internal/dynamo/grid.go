package dynamo

import "fmt"

// Grid is the ordered sample times shared by data generation, integration and loss.
type Grid []float64

// NewUniformGrid returns n evenly spaced points covering [t0, t1], both ends included.
func NewUniformGrid(t0, t1 float64, n int) (Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrGrid, n)
	}
	if !(t1 > t0) {
		return nil, fmt.Errorf("%w: end %.4f must be after start %.4f", ErrGrid, t1, t0)
	}
	g := make(Grid, n)
	h := (t1 - t0) / float64(n-1)
	for i := range g {
		g[i] = t0 + float64(i)*h
	}
	g[n-1] = t1
	return g, nil
}

func (g Grid) Validate() error {
	if len(g) < 2 {
		return fmt.Errorf("%w: need at least 2 samples, got %d", ErrGrid, len(g))
	}
	for i := 1; i < len(g); i++ {
		if !(g[i] > g[i-1]) {
			return fmt.Errorf("%w: t[%d]=%.6f is not after t[%d]=%.6f", ErrGrid, i, g[i], i-1, g[i-1])
		}
	}
	return nil
}

func (g Grid) Start() float64 { return g[0] }
func (g Grid) End() float64   { return g[len(g)-1] }

// Dt returns the spacing between sample i and i+1.
func (g Grid) Dt(i int) float64 { return g[i+1] - g[i] }

func (g Grid) Clone() Grid {
	c := make(Grid, len(g))
	copy(c, g)
	return c
}
