package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// FileStore keeps the session as a JSON document on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, errors.Wrapf(err, "read session file %q", s.path)
	}

	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, errors.Wrapf(err, "parse session file %q", s.path)
	}
	if creds.Empty() {
		return Credentials{}, ErrNoSession
	}
	creds.Source = SourceFile
	return creds, nil
}

func (s *FileStore) Save(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if creds.SavedAt.IsZero() {
		creds.SavedAt = time.Now().UTC()
	}
	body, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove session file %q", s.path)
	}
	return nil
}
