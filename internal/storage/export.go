package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/dynfit/internal/trainer"
)

type ExportData struct {
	Metadata *RunMetadata    `json:"metadata"`
	History  trainer.History `json:"history"`
	Params   []float64       `json:"params"`
	Times    []float64       `json:"times"`
	X        []float64       `json:"x"`
	V        []float64       `json:"v"`
}

// Export writes a run as a single JSON document.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	hist, err := s.LoadHistory(runID)
	if err != nil {
		return err
	}
	params, err := s.LoadParams(runID)
	if err != nil {
		return err
	}
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	data := ExportData{
		Metadata: meta,
		History:  hist,
		Params:   params,
		Times:    tr.Times,
		X:        tr.X,
		V:        tr.V,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
