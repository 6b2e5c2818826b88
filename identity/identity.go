// Package identity keeps the per-user client identifier that routes push
// channel updates. The identifier is a soft routing key, not a credential.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const fileName = "client_id"

// DefaultPath returns the id file location under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "lyrical", fileName), nil
}

// Store hands out the persisted identifier, creating it on first use.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	cached string
}

// New returns a Store backed by path. An empty path keeps the identifier in
// memory only.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// GetOrCreate returns the stored identifier. When the backing file cannot be
// read or written, a token is generated and kept in memory for the lifetime
// of the Store instead.
func (s *Store) GetOrCreate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != "" {
		return s.cached
	}

	if s.path == "" {
		s.cached = uuid.NewString()
		s.logger.Debug("Using in-memory client ID", "clientID", s.cached)
		return s.cached
	}

	id, err := s.loadOrCreate()
	if err != nil {
		s.cached = uuid.NewString()
		s.logger.Warn("Client ID storage unavailable, using in-memory ID",
			"error", err,
			"path", s.path,
			"clientID", s.cached)
		return s.cached
	}

	s.cached = id
	return id
}

func (s *Store) loadOrCreate() (string, error) {
	if id, err := readID(s.path); err == nil {
		return id, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("lock identity file: %w", err)
	}
	defer lock.Unlock()

	// Another process may have created the id while we waited on the lock.
	if id, err := readID(s.path); err == nil {
		return id, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	id := uuid.NewString()
	if err := writeID(s.path, id); err != nil {
		return "", err
	}

	s.logger.Info("Created client ID", "clientID", id, "path", s.path)
	return id, nil
}

func readID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("identity file %s is empty: %w", path, fs.ErrNotExist)
	}
	return id, nil
}

func writeID(path, id string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), fileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp identity file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(id + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write identity file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close identity file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install identity file: %w", err)
	}
	return nil
}
