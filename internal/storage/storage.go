// /internal/storage/storage.go
package storage

import (
	"fmt"
	"sync"

	"filmklub/datastore"
	"filmklub/internal/apperr"

	"github.com/rs/zerolog"
)

// Repository gives read and read-modify-write access to the document.
// Update serializes writers inside one process and persists the whole
// document once fn returns nil. Writers in other processes can still
// overwrite each other.
type Repository interface {
	View(fn func(doc *Document) error) error
	Update(fn func(doc *Document) error) error
}

type Storage struct {
	ds  *datastore.DataStore
	mu  sync.RWMutex
	doc *Document
	log zerolog.Logger
}

var _ Repository = (*Storage)(nil)

func New(filePath string, backups int, logger zerolog.Logger) (*Storage, error) {
	cfg := datastore.DefaultConfig(filePath)
	cfg.BackupCount = backups
	cfg.Logger = logger

	ds, err := datastore.NewWithConfig(cfg)
	if err != nil {
		return nil, apperr.IO("storage.new", "could not open store", err)
	}

	doc := &Document{}
	if err := ds.Load(doc); err != nil {
		return nil, apperr.IO("storage.new", "could not load store", err)
	}
	doc.normalize()

	logger.Info().Str("path", filePath).
		Int("movies", len(doc.Movies)).
		Int("nights", len(doc.Nights)).
		Msg("Store loaded")

	return &Storage{ds: ds, doc: doc, log: logger}, nil
}

// View runs fn against a private copy of the document.
func (s *Storage) View(fn func(doc *Document) error) error {
	s.mu.RLock()
	snapshot := s.doc.Clone()
	s.mu.RUnlock()
	return fn(snapshot)
}

// Update runs fn against a copy of the document and persists it if fn
// returns nil. The in-memory state only changes after a successful write.
func (s *Storage) Update(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.doc.Clone()
	if err := fn(draft); err != nil {
		return err
	}

	if err := s.ds.Save(draft); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist store")
		return apperr.IO("storage.update", "write failed", err)
	}
	s.doc = draft
	return nil
}

// Path returns the backing file location.
func (s *Storage) Path() string { return s.ds.Path() }

func (s *Storage) String() string {
	return fmt.Sprintf("storage(%s)", s.ds.Path())
}
