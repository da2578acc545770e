// Package auth guards the control API with API keys read from keys.json in
// the config directory. The file is watched and reloaded on change.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const keysFileName = "keys.json"

// Key is one entry of keys.json.
type Key struct {
	AccessKey string `json:"access_key"`
	Comment   string `json:"comment,omitempty"`
}

// Service handles API-key authentication.
type Service struct {
	mu        sync.RWMutex
	configDir string
	keys      map[string]Key
	watcher   *fsnotify.Watcher
}

// NewService creates a new auth service watching the given config directory.
// An empty configDir disables watching and leaves the service in open mode.
func NewService(configDir string) (*Service, error) {
	s := &Service{
		configDir: configDir,
		keys:      make(map[string]Key),
	}
	if configDir == "" {
		return s, nil
	}

	// Load initial keys (missing file is OK: open mode)
	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		return s, nil
	}
	s.watcher = watcher

	keysPath := s.keysPath()
	if err := watcher.Add(filepath.Dir(keysPath)); err != nil {
		slog.Warn("auth: could not watch config dir", "err", err)
	}

	go s.watchLoop(keysPath)
	return s, nil
}

func (s *Service) keysPath() string {
	return filepath.Join(s.configDir, keysFileName)
}

// Reload re-reads the keys.json file.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.keys = make(map[string]Key)
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var keys map[string]Key
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	slog.Debug("auth: reloaded keys", "count", len(keys))
	return nil
}

// IsOpenMode returns true if no keys are configured.
// In open mode, all requests are allowed without authentication.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if k.AccessKey != "" {
			return false
		}
	}
	return true
}

// VerifyKey returns true if the given key matches any configured key.
// Uses constant-time comparison to prevent timing attacks.
func (s *Service) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k.AccessKey)) == 1 {
			return true
		}
	}
	return false
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Service) watchLoop(keysPath string) {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name == keysPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				if err := s.Reload(); err != nil {
					slog.Warn("auth: failed to reload keys", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}
