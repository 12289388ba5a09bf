package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JSONFileStore keeps all records in memory and mirrors them to a single
// JSON file: a pretty-printed array of records, rewritten in full on every
// mutation. Whole-snapshot-per-write trades throughput for simplicity, which
// is fine while record counts stay small.
//
// One store instance owns its file exclusively. Pointing two instances at
// the same path is not supported.
type JSONFileStore struct {
	mu       sync.RWMutex
	path     string
	users    map[string]User
	degraded bool
	log      *zap.Logger
}

// NewJSONFileStore loads the snapshot at path, or bootstraps an empty one if
// the file does not exist yet. An unreadable or unparsable snapshot is logged
// and the store starts empty rather than refusing to start; Degraded reports
// that condition.
func NewJSONFileStore(path string, log *zap.Logger) (*JSONFileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	s := &JSONFileStore{path: path, users: make(map[string]User), log: log}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load populates the in-memory map from the snapshot file, exactly once, at
// construction. A missing file is first-run bootstrap: an empty snapshot is
// written so the file exists from then on. Any other read or parse failure
// degrades to an empty store. Duplicate ids in the file resolve last-in-file
// wins.
func (s *JSONFileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.persist()
		}
		s.degraded = true
		s.log.Warn("snapshot unreadable, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return nil
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		s.degraded = true
		s.log.Warn("snapshot corrupt, starting empty",
			zap.String("path", s.path), zap.Error(err))
		return nil
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return nil
}

// persist writes the full current collection to the snapshot file. Callers
// must hold the write lock. If the write fails after an in-memory mutation,
// memory and disk have diverged; the error is propagated and the mutation is
// not rolled back.
func (s *JSONFileStore) persist() error {
	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

// Degraded reports whether the initial load found an existing snapshot it
// could not read, meaning prior state was silently lost.
func (s *JSONFileStore) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Path returns the snapshot file location.
func (s *JSONFileStore) Path() string {
	return s.path
}

func (s *JSONFileStore) Get(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *JSONFileStore) GetByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *JSONFileStore) Create(username, secret string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := User{ID: uuid.NewString(), Username: username, Secret: secret}
	s.users[u.ID] = u
	if err := s.persist(); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *JSONFileStore) Update(id string, patch Patch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	patch.apply(&u)
	s.users[id] = u
	if err := s.persist(); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *JSONFileStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *JSONFileStore) List() ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}
