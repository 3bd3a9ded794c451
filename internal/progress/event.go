// Package progress defines the outcome events emitted by case workers.
package progress

import (
	"errors"
	"time"

	"github.com/openrecords/caseharvester/internal/court"
)

// Event captures one finalized case outcome within a run.
type Event struct {
	// RunID identifies the ingestion run the case belonged to.
	RunID string `json:"run_id"`
	// Identifier is the raw case identifier as supplied in the input.
	Identifier string `json:"identifier"`
	// CaseNumber is the canonical case number, when known.
	CaseNumber string `json:"case_number,omitempty"`
	// Outcome is the terminal classification for this case.
	Outcome court.Outcome `json:"outcome"`
	// Reason carries the terminal error text for failed cases.
	Reason string `json:"reason,omitempty"`
	// Attempts is the number of case-fetch attempts consumed.
	Attempts int `json:"attempts"`
	// Documents is the number of documents attached to the persisted record.
	Documents int `json:"documents"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Dur is the wall time spent on the case.
	Dur time.Duration `json:"dur"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.Identifier == "" {
		return errors.New("identifier is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Outcome {
	case court.OutcomeSucceeded, court.OutcomeSkipped, court.OutcomeFailed, court.OutcomeInterrupted:
	default:
		return errors.New("unknown outcome")
	}
	return nil
}
