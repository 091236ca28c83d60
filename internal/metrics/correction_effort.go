package metrics

import (
	"math"

	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dynamo"
)

// CorrectionEffort is the mean magnitude of the learned force along a trajectory.
type CorrectionEffort struct {
	name    string
	fn      correction.Function
	sum     float64
	samples int
}

func NewCorrectionEffort(fn correction.Function) *CorrectionEffort {
	return &CorrectionEffort{name: "correction_effort", fn: fn}
}

func (c *CorrectionEffort) Name() string { return c.name }

func (c *CorrectionEffort) OnStep(x dynamo.State, t float64) {
	if len(x) < 2 {
		return
	}
	c.sum += math.Abs(c.fn.Eval(x[0], x[1]))
	c.samples++
}

func (c *CorrectionEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *CorrectionEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
