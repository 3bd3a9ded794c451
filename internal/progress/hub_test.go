package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrecords/caseharvester/internal/court"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
	err    error
}

func (s *captureSink) Consume(_ context.Context, evt Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func validEvent(id string) Event {
	return Event{
		RunID:      "run-1",
		Identifier: id,
		Outcome:    court.OutcomeSucceeded,
		TS:         time.Now().UTC(),
	}
}

func TestHubDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	first := &captureSink{}
	second := &captureSink{}
	hub := NewHub(Config{}, first, second)

	for i := 0; i < 5; i++ {
		hub.Emit(validEvent(fmt.Sprintf("case-%d", i)))
	}
	require.NoError(t, hub.Close(context.Background()))

	require.Equal(t, 5, first.count())
	require.Equal(t, 5, second.count())
	require.True(t, first.closed)
	require.True(t, second.closed)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{})
	hub.Emit(validEvent("case-1"))
	require.NoError(t, hub.Close(context.Background()))

	require.Equal(t, 1, sink.count())
}

func TestHubSinkFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	failing := &captureSink{err: fmt.Errorf("sink down")}
	healthy := &captureSink{}
	hub := NewHub(Config{}, failing, healthy)

	hub.Emit(validEvent("case-1"))
	require.NoError(t, hub.Close(context.Background()))

	require.Equal(t, 1, healthy.count())
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent("late"))
	require.Equal(t, 0, sink.count())
}
