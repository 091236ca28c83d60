package export

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestPlotSVG(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSVG(&buf, 100, 50, Series{Points: [][2]float64{{0, 0}, {1, 1}, {2, 0}}, Stroke: "#fff"})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "<?xml") || !strings.Contains(out, "</svg>") {
		t.Errorf("expected a complete svg document, got %q", out)
	}
	if strings.Count(out, "<path") != 1 {
		t.Errorf("expected one path, got %d", strings.Count(out, "<path"))
	}
	if strings.Count(out, " L") != 2 {
		t.Errorf("expected two line segments, got %d", strings.Count(out, " L"))
	}
}

func TestPlotSVG_BreaksOnNaN(t *testing.T) {
	var buf bytes.Buffer
	pts := [][2]float64{{0, 0}, {1, math.NaN()}, {2, 1}, {3, 2}}
	if err := PlotSVG(&buf, 100, 50, Series{Points: pts, Stroke: "#fff"}); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "M") != 2 {
		t.Errorf("expected the path to restart after NaN: %s", buf.String())
	}
}

func TestPlotSVG_NoData(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSVG(&buf, 100, 50, Series{Points: [][2]float64{{math.NaN(), 0}}}); err == nil {
		t.Error("expected error when nothing is finite")
	}
}

func TestPhaseSVG(t *testing.T) {
	var buf bytes.Buffer
	obs := [][2]float64{{1, 0}, {0, -1}}
	pred := [][2]float64{{1, 0}, {0.1, -0.9}}
	if err := PhaseSVG(&buf, obs, pred, 200, 200); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "#00ff88") || !strings.Contains(buf.String(), "#ff00ff") {
		t.Error("expected both series in output")
	}
}

func TestLossSVG(t *testing.T) {
	var buf bytes.Buffer
	if err := LossSVG(&buf, []float64{1, 0.1, 0.01}, 200, 100); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "<path") {
		t.Error("expected a path")
	}
}
