package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/and161185/binqr/internal/model"
)

// Stored is the persisted client session.
type Stored struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	Identity     model.Identity `json:"identity"`
}

// TokenStore persists the client session between runs.
type TokenStore interface {
	// Load returns nil without error when nothing is stored.
	Load() (*Stored, error)
	Save(Stored) error
	Clear() error
}

// ConfigDir returns the per-user configuration directory of the CLI.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "binqr")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "binqr")
}

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store writing to path; an empty path selects ConfigDir()/session.json.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join(ConfigDir(), "session.json")
	}
	return &FileStore{path: path}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (*Stored, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st Stored
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	if st.AccessToken == "" && st.RefreshToken == "" {
		return nil, nil
	}
	return &st, nil
}

func (s *FileStore) Save(st Stored) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore keeps the session in memory only.
type MemoryStore struct {
	mu sync.Mutex
	st *Stored
}

func (m *MemoryStore) Load() (*Stored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st == nil {
		return nil, nil
	}
	cp := *m.st
	return &cp, nil
}

func (m *MemoryStore) Save(st Stored) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = &st
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = nil
	return nil
}
