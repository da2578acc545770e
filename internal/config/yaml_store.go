package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the board description file name inside the config dir.
const DefaultFileName = "board.yaml"

// YAMLStore is an atomic YAML file store.
type YAMLStore struct {
	mu   sync.Mutex
	path string
}

// NewYAMLStore creates a store for the board file at path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Path returns the file path used by this store.
func (s *YAMLStore) Path() string { return s.path }

// Load reads the board from disk. A missing file yields Default(); a corrupt
// or invalid file is an error.
func (s *YAMLStore) Load() (*Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config: no board file, using defaults", "path", s.path)
			def := Default()
			return &def, nil
		}
		return nil, err
	}

	var board Board
	if err := yaml.Unmarshal(data, &board); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	migrateBoard(&board)
	if err := board.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", s.path, err)
	}
	return &board, nil
}

// Save writes the board atomically.
func (s *YAMLStore) Save(board *Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(board)
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

var _ Store = (*YAMLStore)(nil)
