package relay

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MarkerStore is a durable set of keys where only existence matters
type MarkerStore interface {
	// Create records key and reports whether it was absent before.
	// It must be atomic with respect to concurrent callers.
	Create(key string) (bool, error)
	// Remove deletes key; removing an absent key is not an error.
	Remove(key string) error
	Exists(key string) (bool, error)
	List() ([]string, error)
}

// MarkerPrefix prefixes every marker file name
const MarkerPrefix = "relay-stamp-"

// FileStore keeps one empty file per key in a directory. Markers survive
// restarts of the process that created them.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("marker directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the markers
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the marker file path for key
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, MarkerPrefix+url.PathEscape(key))
}

func (s *FileStore) Create(key string) (bool, error) {
	f, err := os.OpenFile(s.Path(key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, f.Close()
}

func (s *FileStore) Remove(key string) error {
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) Exists(key string) (bool, error) {
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name, ok := strings.CutPrefix(e.Name(), MarkerPrefix)
		if !ok || e.IsDir() {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			continue // not one of ours
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// MemoryStore is a MarkerStore that lives only as long as the process
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

func (s *MemoryStore) Create(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *MemoryStore) Exists(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
