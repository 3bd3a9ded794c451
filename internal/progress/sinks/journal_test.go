package sinks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrecords/caseharvester/internal/court"
	"github.com/openrecords/caseharvester/internal/progress"
)

func journalEvent(identifier string, outcome court.Outcome) progress.Event {
	return progress.Event{
		RunID:      "run-test",
		Identifier: identifier,
		CaseNumber: identifier,
		Outcome:    outcome,
		Attempts:   1,
		TS:         time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestJournalSinkDurablePerEvent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	sink, err := NewJournalSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), journalEvent("24CV428648", court.OutcomeSucceeded)))

	// Each line must reach the file as it is consumed, not at Close,
	// so a crash mid-run cannot drop recorded outcomes.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var got progress.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	require.Equal(t, "24CV428648", got.Identifier)
	require.Equal(t, court.OutcomeSucceeded, got.Outcome)

	require.NoError(t, sink.Consume(context.Background(), journalEvent("24CV000000", court.OutcomeFailed)))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)

	require.NoError(t, sink.Close(context.Background()))
}

func TestJournalSinkClose(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "outcomes.jsonl")
	sink, err := NewJournalSink(path)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), journalEvent("24CV428648", court.OutcomeSkipped)))
	require.NoError(t, sink.Close(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"outcome":"skipped"`)
}
