package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/openrecords/caseharvester/internal/progress"
)

// JournalSink appends one JSON line per case outcome to a file, giving the
// run a durable record that survives the process.
type JournalSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
}

// NewJournalSink opens (or creates) the journal file in append mode.
func NewJournalSink(path string) (*JournalSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open outcome journal: %w", err)
	}
	return &JournalSink{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Consume appends the event as one JSON line.
func (s *JournalSink) Consume(_ context.Context, evt progress.Event) error {
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal outcome event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append outcome event: %w", err)
	}
	// One line per case is not a hot path; flush so a crash mid-run does
	// not lose recorded outcomes.
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush outcome journal: %w", err)
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (s *JournalSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush outcome journal: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close outcome journal: %w", err)
	}
	return nil
}
