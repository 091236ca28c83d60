// Package storage persists training runs as plain files, one directory per run:
//
//	metadata.json   summary, metrics and damping estimate
//	config.yaml     the full configuration the run was built from
//	trajectory.csv  time, noisy and ideal samples
//	prediction.csv  the trained model's trajectory
//	loss.csv        one row per epoch
//	params.json     the learned correction parameters
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/san-kum/dynfit/internal/analysis"
	"github.com/san-kum/dynfit/internal/config"
	"github.com/san-kum/dynfit/internal/experiment"
)

const (
	metadataFile   = "metadata.json"
	configFile     = "config.yaml"
	trajectoryFile = "trajectory.csv"
	predictionFile = "prediction.csv"
	lossFile       = "loss.csv"
	paramsFile     = "params.json"
)

const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string                   `json:"id"`
	Name      string                   `json:"name"`
	Timestamp time.Time                `json:"timestamp"`
	Status    string                   `json:"status"`
	Error     string                   `json:"error,omitempty"`
	Seed      uint64                   `json:"seed"`
	Model     string                   `json:"model"`
	Samples   int                      `json:"samples"`
	Epochs    int                      `json:"epochs"`
	Damping   float64                  `json:"damping"`
	Estimate  analysis.DampingEstimate `json:"estimate"`
	Loss      analysis.LossSummary     `json:"loss"`
	Metrics   map[string]float64       `json:"metrics"`
	ElapsedMS int64                    `json:"elapsed_ms"`
}

// Save writes every artifact of res under a new run directory and returns its
// ID. runErr, when non-nil, marks the run as failed; whatever res carries is
// still written.
func (s *Store) Save(name string, res *experiment.Result, runErr error) (string, error) {
	if res == nil || res.Config == nil || res.Data == nil {
		return "", errors.New("storage: nothing to save")
	}

	runID, runDir, err := s.newRunDir(name)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Timestamp: time.Now(),
		Status:    StatusDone,
		Seed:      res.Config.Seed,
		Model:     res.Config.Model.Kind,
		Samples:   res.Data.Len(),
		Epochs:    len(res.History),
		Damping:   res.Config.Damping,
		Estimate:  res.Damping,
		Loss:      res.Loss,
		Metrics:   res.Metrics,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if runErr != nil {
		meta.Status = StatusFailed
		meta.Error = runErr.Error()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), res.Config); err != nil {
		return "", err
	}
	if err := WriteTrajectory(filepath.Join(runDir, trajectoryFile), res.Data); err != nil {
		return "", err
	}
	if len(res.Prediction) > 0 {
		if err := writePrediction(filepath.Join(runDir, predictionFile), res.Data.Times, res.Prediction); err != nil {
			return "", err
		}
	}
	if err := writeHistory(filepath.Join(runDir, lossFile), res.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, paramsFile), res.Params); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) newRunDir(name string) (string, string, error) {
	if err := s.Init(); err != nil {
		return "", "", err
	}
	base := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runID := base
	for i := 1; ; i++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s-%d", base, i)
	}
}

// List returns the metadata of every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	var meta RunMetadata
	if err := readJSON(s.path(runID, metadataFile), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(s.path(runID, configFile))
}

func (s *Store) LoadParams(runID string) ([]float64, error) {
	var params []float64
	if err := readJSON(s.path(runID, paramsFile), &params); err != nil {
		return nil, err
	}
	return params, nil
}

func (s *Store) path(runID, file string) string {
	return filepath.Join(s.baseDir, runID, file)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
