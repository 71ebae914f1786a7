package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrNotLoggedIn = errors.New("no cached identity")

// Identity is the locally persisted user identity. The token is an opaque
// bearer token issued by the auth endpoint.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// Store caches one identity in a JSON file. The sync core only reads it;
// login writes it.
type Store struct {
	path string

	mu     sync.Mutex
	cached *Identity
	loaded bool
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Current returns the cached identity, loading it from disk on first use.
func (s *Store) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.loaded = true
		id, err := s.load()
		if err == nil {
			s.cached = &id
		}
	}

	if s.cached == nil {
		return Identity{}, false
	}
	return *s.cached, true
}

func (s *Store) Save(id Identity) error {
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create identity dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write identity file: %w", err)
	}

	s.mu.Lock()
	s.cached = &id
	s.loaded = true
	s.mu.Unlock()

	return nil
}

func (s *Store) Clear() error {
	s.mu.Lock()
	s.cached = nil
	s.loaded = true
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove identity file: %w", err)
	}
	return nil
}

func (s *Store) load() (Identity, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, ErrNotLoggedIn
		}
		return Identity{}, fmt.Errorf("failed to read identity file: %w", err)
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to unmarshal identity file: %w", err)
	}
	if id.Email == "" {
		return Identity{}, ErrNotLoggedIn
	}

	return id, nil
}
