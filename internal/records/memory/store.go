// Package memory provides an in-process ArchiveRecord store.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/site-archiver/internal/records"
)

// Store keeps records for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	records []records.ArchiveRecord
	byRun   map[string]struct{}
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{byRun: make(map[string]struct{})}
}

// Append adds rec; each run may be recorded once.
func (s *Store) Append(_ context.Context, rec records.ArchiveRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byRun[rec.RunID]; exists {
		return errors.New("archive record already exists")
	}
	s.byRun[rec.RunID] = struct{}{}
	s.records = append(s.records, rec)
	return nil
}

// List returns a copy of the records in insertion order.
func (s *Store) List(context.Context) ([]records.ArchiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]records.ArchiveRecord(nil), s.records...), nil
}
