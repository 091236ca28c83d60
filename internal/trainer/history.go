package trainer

// Epoch is the record of one completed forward/backward/update cycle.
// Loss is measured before the parameter update of that epoch.
type Epoch struct {
	Index    int     `json:"epoch" csv:"epoch"`
	Loss     float64 `json:"loss" csv:"loss"`
	GradNorm float64 `json:"grad_norm" csv:"grad_norm"`
}

type History []Epoch

func (h History) Losses() []float64 {
	out := make([]float64, len(h))
	for i, e := range h {
		out[i] = e.Loss
	}
	return out
}

func (h History) Last() (Epoch, bool) {
	if len(h) == 0 {
		return Epoch{}, false
	}
	return h[len(h)-1], true
}

// Observer is notified after every recorded epoch.
type Observer interface {
	OnEpoch(e Epoch)
}

type ObserverFunc func(e Epoch)

func (f ObserverFunc) OnEpoch(e Epoch) { f(e) }
