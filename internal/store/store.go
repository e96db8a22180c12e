// Package store owns the single on-disk JSON document containing users,
// profiles, and their listings. Mutation happens only on a value
// returned by Load and is committed via Store.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeffrey/fundawatch/internal/models"
	"github.com/jeffrey/fundawatch/pkg/logger"
)

// ErrPersistence wraps failures during the atomic rename protocol.
var ErrPersistence = fmt.Errorf("store: persistence error")

// Store serialises concurrent load/store pairs behind a single mutex and
// guarantees every write is atomic: the document transitions between two
// valid on-disk states only.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// New returns a Store bound to path. The file need not exist yet; Load
// returns an empty Document in that case.
func New(path string, log *logger.Logger) *Store {
	return &Store{path: path, logger: log.WithComponent("store")}
}

// Load reads and decodes the document, returning an empty Document if
// the file does not yet exist.
func (s *Store) Load() (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*models.Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewDocument(), nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrPersistence, s.path, err)
	}
	if len(data) == 0 {
		return models.NewDocument(), nil
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrPersistence, s.path, err)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*models.User)
	}
	if doc.Profiles == nil {
		doc.Profiles = make(map[string]*models.SearchProfile)
	}
	return &doc, nil
}

// Store serialises doc to a sibling temp file, flushes and syncs it,
// then renames it over the destination path. A crash mid-write leaves
// the previous state intact.
func (s *Store) Store(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLocked(doc)
}

func (s *Store) storeLocked(doc *models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating directory %s: %v", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrPersistence, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing temp file: %v", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: fsync temp file: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing temp file: %v", ErrPersistence, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: renaming into place: %v", ErrPersistence, err)
	}
	return nil
}

// Mutate loads the document, applies fn, and stores the result, holding
// the store's mutex for the entire load-mutate-store pass so no other
// goroutine observes a torn intermediate state.
func (s *Store) Mutate(fn func(*models.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.storeLocked(doc)
}
