// Package export renders run data as standalone SVG documents.
package export

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Series is one polyline of an SVG plot.
type Series struct {
	Points [][2]float64
	Stroke string
}

// PlotSVG draws every series in a shared data window padded by 10% on each
// side. Non-finite points break the line.
func PlotSVG(w io.Writer, width, height int, series ...Series) error {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, p := range s.Points {
			if !finite(p) {
				continue
			}
			minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
			minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
		}
	}
	if math.IsInf(minX, 1) {
		return fmt.Errorf("export: no finite points to plot")
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for _, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, s.Stroke)
		move := true
		for _, p := range s.Points {
			if !finite(p) {
				move = true
				continue
			}
			x := (p[0] - minX) / rangeX * float64(width)
			y := float64(height) - (p[1]-minY)/rangeY*float64(height)
			if move {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
				move = false
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// LossSVG plots log10(loss) against the epoch index.
func LossSVG(w io.Writer, losses []float64, width, height int) error {
	pts := make([][2]float64, len(losses))
	for i, l := range losses {
		pts[i] = [2]float64{float64(i), math.Log10(l)}
	}
	return PlotSVG(w, width, height, Series{Points: pts, Stroke: "#00ccff"})
}

// PhaseSVG plots observed (green) and predicted (magenta) paths in the (x, v) plane.
func PhaseSVG(w io.Writer, observed, predicted [][2]float64, width, height int) error {
	return PlotSVG(w, width, height,
		Series{Points: observed, Stroke: "#00ff88"},
		Series{Points: predicted, Stroke: "#ff00ff"},
	)
}

func finite(p [2]float64) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
