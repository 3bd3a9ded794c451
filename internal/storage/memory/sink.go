// Package memory provides in-memory storage implementations for development
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/openrecords/caseharvester/internal/court"
)

// Sink stores case records in a map keyed by case number.
type Sink struct {
	mu      sync.RWMutex
	records map[string]*court.CaseRecord
}

// NewSink creates an empty in-memory sink.
func NewSink() *Sink {
	return &Sink{records: make(map[string]*court.CaseRecord)}
}

// Exists reports whether the case has been persisted.
func (s *Sink) Exists(_ context.Context, caseNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[caseNumber]
	return ok, nil
}

// Persist stores the record, replacing any prior version.
func (s *Sink) Persist(_ context.Context, record *court.CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.CaseNumber] = record
	return nil
}

// Get returns a stored record, or nil.
func (s *Sink) Get(caseNumber string) *court.CaseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[caseNumber]
}

// Len reports the number of stored cases.
func (s *Sink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
