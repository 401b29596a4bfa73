package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Session store keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// ErrCorruptSession is returned by Store.Load when the stored session
// cannot be read back.
var ErrCorruptSession = errors.New("session store is corrupt")

// Store keeps the session keys. Save replaces every key at once, so a
// reader never sees a token without its user or the other way round.
type Store interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
	Clear() error
}

// FileStore persists the session as a JSON object in a single file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath is $XDG_CONFIG_HOME/civictickets/session.json, or the
// ~/.config equivalent.
func DefaultSessionPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "civictickets-session.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "civictickets", "session.json")
}

// Load returns the stored keys; a missing file is an empty session.
func (s *FileStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "read session file %s", s.path)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(ErrCorruptSession, "parse session file %s: %v", s.path, err)
	}
	return values, nil
}

// Save writes a temporary file next to the target and renames it over the
// old session.
func (s *FileStore) Save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create session directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return errors.Wrap(err, "create session file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write session file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "chmod session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "replace session file")
}

// Clear deletes the session file.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove session file %s", s.path)
	}
	return nil
}

// MemoryStore keeps the session in memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Load() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Save(values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string, len(values))
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]string{}
	return nil
}
