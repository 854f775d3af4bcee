package session

import (
	"context"
	"os"
	"sync/atomic"
)

const (
	EnvSessionID = "IG_SESSIONID"
	EnvCSRFToken = "IG_CSRFTOKEN"
	EnvUsername  = "IG_USERNAME"
)

// EnvStore reads the session from an environment variable pair. It cannot
// persist anything; invalidation only lasts for the life of the process.
type EnvStore struct {
	lookup  func(string) (string, bool)
	revoked atomic.Bool
}

func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

func (s *EnvStore) Load(ctx context.Context) (Credentials, error) {
	if s.revoked.Load() {
		return Credentials{}, ErrNoSession
	}

	sessionID, _ := s.lookup(EnvSessionID)
	if sessionID == "" {
		return Credentials{}, ErrNoSession
	}
	csrf, _ := s.lookup(EnvCSRFToken)
	username, _ := s.lookup(EnvUsername)

	return Credentials{
		Username:  username,
		SessionID: sessionID,
		CSRFToken: csrf,
		Source:    SourceEnv,
	}, nil
}

func (s *EnvStore) Save(context.Context, Credentials) error {
	return ErrReadOnly
}

func (s *EnvStore) Invalidate(context.Context) error {
	s.revoked.Store(true)
	return nil
}
