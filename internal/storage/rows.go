package storage

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/dynfit/internal/dataset"
	"github.com/san-kum/dynfit/internal/dynamo"
	"github.com/san-kum/dynfit/internal/trainer"
)

type trajectoryRow struct {
	Time  float64 `csv:"time"`
	X     float64 `csv:"x"`
	V     float64 `csv:"v"`
	TrueX float64 `csv:"true_x"`
	TrueV float64 `csv:"true_v"`
}

type predictionRow struct {
	Time float64 `csv:"time"`
	X    float64 `csv:"x"`
	V    float64 `csv:"v"`
}

// WriteTrajectory writes one CSV row per grid point.
func WriteTrajectory(path string, tr *dataset.Trajectory) error {
	rows := make([]*trajectoryRow, tr.Len())
	for i := range rows {
		rows[i] = &trajectoryRow{
			Time:  tr.Times[i],
			X:     tr.X[i],
			V:     tr.V[i],
			TrueX: tr.TrueX[i],
			TrueV: tr.TrueV[i],
		}
	}
	return marshalFile(path, &rows)
}

// ReadTrajectory loads a file written by WriteTrajectory. The noise level is
// not stored in the file and is left at zero.
func ReadTrajectory(path string) (*dataset.Trajectory, error) {
	var rows []*trajectoryRow
	if err := unmarshalFile(path, &rows); err != nil {
		return nil, err
	}

	n := len(rows)
	tr := &dataset.Trajectory{
		Times: make(dynamo.Grid, n),
		X:     make([]float64, n),
		V:     make([]float64, n),
		TrueX: make([]float64, n),
		TrueV: make([]float64, n),
	}
	for i, r := range rows {
		tr.Times[i] = r.Time
		tr.X[i] = r.X
		tr.V[i] = r.V
		tr.TrueX[i] = r.TrueX
		tr.TrueV[i] = r.TrueV
	}
	if err := tr.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

func writePrediction(path string, times dynamo.Grid, states []dynamo.State) error {
	if len(times) != len(states) {
		return fmt.Errorf("%w: %d times, %d states", dynamo.ErrDimensionMismatch, len(times), len(states))
	}
	rows := make([]*predictionRow, len(states))
	for i, s := range states {
		rows[i] = &predictionRow{Time: times[i], X: s[0], V: s[1]}
	}
	return marshalFile(path, &rows)
}

func writeHistory(path string, h trainer.History) error {
	rows := make([]*trainer.Epoch, len(h))
	for i := range h {
		rows[i] = &h[i]
	}
	return marshalFile(path, &rows)
}

func (s *Store) LoadTrajectory(runID string) (*dataset.Trajectory, error) {
	return ReadTrajectory(s.path(runID, trajectoryFile))
}

func (s *Store) LoadPrediction(runID string) ([]dynamo.State, error) {
	var rows []*predictionRow
	if err := unmarshalFile(s.path(runID, predictionFile), &rows); err != nil {
		return nil, err
	}
	states := make([]dynamo.State, len(rows))
	for i, r := range rows {
		states[i] = dynamo.State{r.X, r.V}
	}
	return states, nil
}

func (s *Store) LoadHistory(runID string) (trainer.History, error) {
	var rows []*trainer.Epoch
	if err := unmarshalFile(s.path(runID, lossFile), &rows); err != nil {
		return nil, err
	}
	h := make(trainer.History, len(rows))
	for i, r := range rows {
		h[i] = *r
	}
	return h, nil
}

func marshalFile(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(rows, f)
}

func unmarshalFile(path string, rows any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.UnmarshalFile(f, rows)
}
