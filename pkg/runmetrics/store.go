package runmetrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists RunMetrics snapshots to disk under <baseDir>/.ralph/runs,
// one file per run, written via temp-file-then-rename so a reader never
// observes a partially written snapshot.
type Store struct {
	runsDir string
}

// NewStore creates (or reopens) a metrics store rooted at baseDir.
func NewStore(baseDir string) (*Store, error) {
	runsDir := filepath.Join(baseDir, ".ralph", "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("runmetrics: create runs dir: %w", err)
	}
	return &Store{runsDir: runsDir}, nil
}

// Save writes metrics to <run_id>.json, returning the path written.
func (s *Store) Save(metrics RunMetrics) (string, error) {
	path := filepath.Join(s.runsDir, metrics.RunID+".json")
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("runmetrics: marshal metrics: %w", err)
	}

	file, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("runmetrics: create temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return "", fmt.Errorf("runmetrics: write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return "", fmt.Errorf("runmetrics: sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("runmetrics: close temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return "", fmt.Errorf("runmetrics: rename metrics file: %w", err)
	}
	return path, nil
}

// Load reads a run's metrics snapshot, returning (nil, nil) if it was
// never saved.
func (s *Store) Load(runID string) (*RunMetrics, error) {
	path := filepath.Join(s.runsDir, runID+".json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runmetrics: read metrics file: %w", err)
	}
	var metrics RunMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, fmt.Errorf("runmetrics: parse metrics file: %w", err)
	}
	return &metrics, nil
}
