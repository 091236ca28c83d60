package trainer_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynfit/internal/correction"
	"github.com/san-kum/dynfit/internal/dataset"
	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/hybrid"
	"github.com/san-kum/dynfit/internal/physics"
	"github.com/san-kum/dynfit/internal/trainer"
)

type scenario struct {
	damping    float64
	noise      float64
	samples    int
	end        float64
	hidden     int
	seed       uint64
	zeroOutput bool
}

func reference() scenario {
	return scenario{damping: 0.7, noise: 0.1, samples: 200, end: 10, hidden: correction.DefaultHidden, seed: 1}
}

func build(s scenario) (*hybrid.Dynamics, *correction.MLP, *dataset.Trajectory) {
	sys, err := physics.NewSpringMass(1.0, 5.0, s.damping)
	Expect(err).NotTo(HaveOccurred())
	grid, err := dynamo.NewUniformGrid(0, s.end, s.samples)
	Expect(err).NotTo(HaveOccurred())

	opts := dataset.DefaultOptions()
	opts.Noise = s.noise
	opts.Seed = s.seed
	data, err := dataset.Generate(context.Background(), sys, dynamo.State{1.0, 0.0}, grid, opts)
	Expect(err).NotTo(HaveOccurred())

	mlp, err := correction.NewMLP(correction.MLPConfig{Hidden: s.hidden, Layers: 1, Seed: s.seed})
	Expect(err).NotTo(HaveOccurred())
	if s.zeroOutput {
		mlp.ZeroOutput()
	}
	dyn, err := hybrid.New(1.0, 5.0, mlp)
	Expect(err).NotTo(HaveOccurred())
	return dyn, mlp, data
}

type poisoned struct{ *correction.Linear }

func (p poisoned) Eval(x, v float64) float64 { return math.NaN() }

func (p poisoned) Grad(x, v float64, d []float64) (float64, float64, float64) {
	p.Linear.Grad(x, v, d)
	return math.NaN(), 0, 0
}

var _ = Describe("Trainer", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("gradient", func() {
		It("matches central finite differences for every parameter", func() {
			s := reference()
			s.samples, s.end, s.hidden = 60, 3, 4
			dyn, mlp, data := build(s)

			tr, err := trainer.New(dyn, data, trainer.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			_, grad, err := tr.Gradient(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(grad).To(HaveLen(mlp.NumParams()))

			const eps = 1e-6
			params := mlp.Params()
			for j := range params {
				orig := params[j]
				params[j] = orig + eps
				up, err := tr.Loss(ctx)
				Expect(err).NotTo(HaveOccurred())
				params[j] = orig - eps
				down, err := tr.Loss(ctx)
				Expect(err).NotTo(HaveOccurred())
				params[j] = orig

				fd := (up - down) / (2 * eps)
				Expect(grad[j]).To(BeNumerically("~", fd, 1e-6+1e-4*math.Abs(fd)), "param %d", j)
			}
		})
	})

	Describe("boundary", func() {
		It("has near-zero loss for noiseless undamped data and a zero correction", func() {
			s := reference()
			s.damping, s.noise, s.zeroOutput = 0, 0, true
			dyn, _, data := build(s)

			tr, err := trainer.New(dyn, data, trainer.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			loss, err := tr.Loss(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loss).To(BeNumerically("<", 1e-8))
		})

		It("has a visible loss for damped data before any training", func() {
			s := reference()
			s.noise, s.zeroOutput = 0, true
			dyn, _, data := build(s)

			tr, err := trainer.New(dyn, data, trainer.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			loss, err := tr.Loss(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(loss).To(BeNumerically(">", 1e-3))
		})
	})

	Describe("Run", func() {
		It("walks through the phases and records one entry per epoch", func() {
			s := reference()
			s.samples = 80
			dyn, _, data := build(s)

			cfg := trainer.DefaultConfig()
			cfg.Epochs = 12
			seen := 0
			tr, err := trainer.New(dyn, data, cfg, trainer.WithObserver(trainer.ObserverFunc(func(e trainer.Epoch) {
				Expect(e.Index).To(Equal(seen))
				seen++
			})))
			Expect(err).NotTo(HaveOccurred())
			Expect(tr.Phase()).To(Equal(trainer.Initialized))

			hist, err := tr.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hist).To(HaveLen(12))
			Expect(seen).To(Equal(12))
			Expect(tr.Phase()).To(Equal(trainer.Done))

			_, err = tr.Run(ctx)
			Expect(err).To(MatchError(trainer.ErrAlreadyRun))
		})

		It("produces identical histories for the same seed", func() {
			s := reference()
			cfg := trainer.DefaultConfig()
			cfg.Epochs = 20

			dynA, _, dataA := build(s)
			a, _ := trainer.New(dynA, dataA, cfg)
			histA, err := a.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			dynB, _, dataB := build(s)
			b, _ := trainer.New(dynB, dataB, cfg)
			histB, err := b.Run(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(histA).To(Equal(histB))
		})

		It("lowers the loss over 100 epochs for most seeds", func() {
			improved := 0
			for seed := uint64(1); seed <= 10; seed++ {
				s := reference()
				s.seed = seed
				dyn, _, data := build(s)

				tr, err := trainer.New(dyn, data, trainer.DefaultConfig())
				Expect(err).NotTo(HaveOccurred())
				hist, err := tr.Run(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(hist).To(HaveLen(trainer.DefaultEpochs))

				if hist[len(hist)-1].Loss < hist[0].Loss {
					improved++
				}
			}
			Expect(improved).To(BeNumerically(">=", 9))
		})

		It("stops early once the loss plateaus", func() {
			s := reference()
			s.samples = 50
			dyn, _, data := build(s)

			cfg := trainer.DefaultConfig()
			cfg.Patience = 1
			cfg.MinDelta = 1e9
			tr, _ := trainer.New(dyn, data, cfg)

			hist, err := tr.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(hist).To(HaveLen(2))
			Expect(tr.Phase()).To(Equal(trainer.Done))
		})

		It("reports divergence without recording the failed epoch", func() {
			s := reference()
			_, _, data := build(s)
			dyn, err := hybrid.New(1.0, 5.0, poisoned{correction.NewLinear(0, 0, 0)})
			Expect(err).NotTo(HaveOccurred())

			tr, err := trainer.New(dyn, data, trainer.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			hist, err := tr.Run(ctx)
			Expect(errors.Is(err, dynamo.ErrDiverged)).To(BeTrue())
			Expect(hist).To(BeEmpty())
			Expect(tr.Phase()).To(Equal(trainer.Failed))
		})

		It("honours cancellation between epochs", func() {
			dyn, _, data := build(reference())
			tr, _ := trainer.New(dyn, data, trainer.DefaultConfig())

			canceled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := tr.Run(canceled)
			Expect(err).To(MatchError(context.Canceled))
			Expect(tr.Phase()).To(Equal(trainer.Failed))
		})
	})

	Describe("New", func() {
		It("rejects invalid configuration before training", func() {
			dyn, _, data := build(reference())

			cfg := trainer.DefaultConfig()
			cfg.Epochs = 0
			_, err := trainer.New(dyn, data, cfg)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())

			cfg = trainer.DefaultConfig()
			cfg.LearningRate = -1
			_, err = trainer.New(dyn, data, cfg)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		})

		It("rejects observations that do not match the grid", func() {
			dyn, _, data := build(reference())
			broken := *data
			broken.V = broken.V[:10]

			_, err := trainer.New(dyn, &broken, trainer.DefaultConfig())
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		})
	})
})
