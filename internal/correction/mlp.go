package correction

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynfit/internal/dynamo"
)

const (
	DefaultHidden = 32
	DefaultLayers = 1
)

type MLPConfig struct {
	Hidden int
	Layers int
	Seed   uint64
}

// MLP is a fully connected tanh network 2 → Hidden (× Layers) → 1.
//
// All weights and biases live in one flat slice; the per-layer matrices are
// gonum views onto it, so optimizers can update Params() in place.
type MLP struct {
	sizes   []int
	params  []float64
	offsets []int
	weights []*mat.Dense
	biases  []*mat.VecDense

	acts  []*mat.VecDense
	delta []*mat.VecDense
	back  []*mat.VecDense
}

func NewMLP(cfg MLPConfig) (*MLP, error) {
	if cfg.Hidden < 1 {
		return nil, fmt.Errorf("%w: hidden width must be positive, got %d", dynamo.ErrParameterBounds, cfg.Hidden)
	}
	if cfg.Layers < 1 {
		return nil, fmt.Errorf("%w: need at least one hidden layer, got %d", dynamo.ErrParameterBounds, cfg.Layers)
	}

	sizes := []int{2}
	for i := 0; i < cfg.Layers; i++ {
		sizes = append(sizes, cfg.Hidden)
	}
	sizes = append(sizes, 1)

	n := 0
	offsets := make([]int, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		offsets[l] = n
		n += sizes[l+1]*sizes[l] + sizes[l+1]
	}

	m := &MLP{
		sizes:   sizes,
		params:  make([]float64, n),
		offsets: offsets,
	}
	m.bind()

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	for l := range m.weights {
		bound := 1 / math.Sqrt(float64(sizes[l]))
		u := distuv.Uniform{Min: -bound, Max: bound, Src: src}
		p := m.layerParams(l)
		for i := range p {
			p[i] = u.Rand()
		}
	}

	return m, nil
}

func (m *MLP) bind() {
	layers := len(m.sizes) - 1
	m.weights = make([]*mat.Dense, layers)
	m.biases = make([]*mat.VecDense, layers)
	m.acts = make([]*mat.VecDense, layers+1)
	m.delta = make([]*mat.VecDense, layers)
	m.back = make([]*mat.VecDense, layers)

	m.acts[0] = mat.NewVecDense(m.sizes[0], nil)
	for l := 0; l < layers; l++ {
		in, out := m.sizes[l], m.sizes[l+1]
		off := m.offsets[l]
		m.weights[l] = mat.NewDense(out, in, m.params[off:off+out*in])
		m.biases[l] = mat.NewVecDense(out, m.params[off+out*in:off+out*in+out])
		m.acts[l+1] = mat.NewVecDense(out, nil)
		m.delta[l] = mat.NewVecDense(out, nil)
		m.back[l] = mat.NewVecDense(in, nil)
	}
}

func (m *MLP) layerParams(l int) []float64 {
	in, out := m.sizes[l], m.sizes[l+1]
	off := m.offsets[l]
	return m.params[off : off+out*in+out]
}

func (m *MLP) forward(x, v float64) float64 {
	m.acts[0].SetVec(0, x)
	m.acts[0].SetVec(1, v)

	last := len(m.weights) - 1
	for l, w := range m.weights {
		z := m.acts[l+1]
		z.MulVec(w, m.acts[l])
		z.AddVec(z, m.biases[l])
		if l == last {
			break
		}
		raw := z.RawVector()
		for i := 0; i < raw.N; i++ {
			raw.Data[i*raw.Inc] = math.Tanh(raw.Data[i*raw.Inc])
		}
	}
	return m.acts[len(m.acts)-1].AtVec(0)
}

func (m *MLP) Eval(x, v float64) float64 {
	return m.forward(x, v)
}

func (m *MLP) Grad(x, v float64, dParams []float64) (float64, float64, float64) {
	out := m.forward(x, v)

	last := len(m.weights) - 1
	m.delta[last].SetVec(0, 1)
	for l := last; l >= 0; l-- {
		in, size := m.sizes[l], m.sizes[l+1]
		off := m.offsets[l]

		gw := mat.NewDense(size, in, dParams[off:off+size*in])
		gw.Outer(1, m.delta[l], m.acts[l])
		copy(dParams[off+size*in:off+size*in+size], m.delta[l].RawVector().Data)

		m.back[l].MulVec(m.weights[l].T(), m.delta[l])
		if l == 0 {
			break
		}
		// tanh'(z) = 1 - tanh(z)^2 on the previous layer's activations.
		prev := m.acts[l]
		for i := 0; i < in; i++ {
			a := prev.AtVec(i)
			m.delta[l-1].SetVec(i, m.back[l].AtVec(i)*(1-a*a))
		}
	}

	return out, m.back[0].AtVec(0), m.back[0].AtVec(1)
}

func (m *MLP) Params() []float64 { return m.params }
func (m *MLP) NumParams() int    { return len(m.params) }

// ZeroOutput clears the output layer so N ≡ 0 while gradients stay non-trivial.
func (m *MLP) ZeroOutput() {
	clear(m.layerParams(len(m.weights) - 1))
}

func (m *MLP) Hidden() int { return m.sizes[1] }
func (m *MLP) Layers() int { return len(m.sizes) - 2 }
