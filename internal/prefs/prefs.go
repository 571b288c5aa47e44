// Package prefs persists small operator preferences between runs.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Prefs holds the preference record stored on disk.
type Prefs struct {
	BatchSize int    `json:"batch_size"`
	LastMode  string `json:"last_mode"`
}

const defaultBatchSize = 5

// Store reads and writes the preference file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns stored preferences, falling back to defaults when the file
// is missing or unreadable.
func (s *Store) Load() Prefs {
	p := Prefs{BatchSize: defaultBatchSize}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return p
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Prefs{BatchSize: defaultBatchSize}
	}
	if p.BatchSize <= 0 {
		p.BatchSize = defaultBatchSize
	}
	return p
}

// Save writes preferences atomically.
func (s *Store) Save(p Prefs) error {
	if p.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", p.BatchSize)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// SetBatchSize updates only the batch size preference.
func (s *Store) SetBatchSize(n int) error {
	p := s.Load()
	p.BatchSize = n
	return s.Save(p)
}

// SetLastMode updates only the last-used mode.
func (s *Store) SetLastMode(mode string) error {
	p := s.Load()
	p.LastMode = mode
	return s.Save(p)
}
