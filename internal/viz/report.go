package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"
)

// LossChart plots the loss per epoch. With logScale the curve is drawn as
// log10(loss), which keeps late-training detail visible.
func LossChart(losses []float64, width, height int, logScale bool) string {
	if len(losses) == 0 {
		return Subtle.Render("no epochs recorded")
	}

	data := losses
	caption := "loss per epoch"
	if logScale {
		data = make([]float64, len(losses))
		for i, l := range losses {
			data[i] = math.Log10(math.Max(l, 1e-300))
		}
		caption = "log10(loss) per epoch"
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PhasePortrait draws observed and predicted trajectories in the (x, v) plane
// on separate canvases sharing one scale, observed first.
func PhasePortrait(observed, predicted [][2]float64, width, height int) string {
	b := BoundsOf(observed, predicted)

	obs := NewCanvas(width, height)
	obs.Polyline(observed, b)
	out := Subtle.Render(fmt.Sprintf("observed  x∈[%.2f, %.2f] v∈[%.2f, %.2f]", b.MinX, b.MaxX, b.MinY, b.MaxY)) + "\n" + obs.String()

	if len(predicted) > 0 {
		pred := NewCanvas(width, height)
		pred.Polyline(predicted, b)
		out += Subtle.Render("predicted") + "\n" + pred.String()
	}
	return out
}

// Points zips two equal-length series into plot points.
func Points(xs, ys []float64) [][2]float64 {
	n := min(len(xs), len(ys))
	out := make([][2]float64, n)
	for i := 0; i < n; i++ {
		out[i] = [2]float64{xs[i], ys[i]}
	}
	return out
}
