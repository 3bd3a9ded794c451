// Package court defines core types shared across subsystems.
package court

import "time"

// ChallengeToken is a solved portal challenge. It is consumed exactly once
// when exchanged for a Credential.
type ChallengeToken struct {
	Value     string
	CreatedAt time.Time
}

// Credential is the short-lived access token required by the case source.
type Credential struct {
	Token    string
	IssuedAt time.Time
	TTL      time.Duration
}

// Age reports how long ago the credential was issued.
func (c Credential) Age(now time.Time) time.Duration {
	return now.Sub(c.IssuedAt)
}

// Zero reports whether the credential has never been populated.
func (c Credential) Zero() bool {
	return c.Token == ""
}

// CaseRecord is the normalized representation of one court case. It is built
// by one case worker, is immutable once assembled, and is handed to the
// RecordSink whole.
type CaseRecord struct {
	CaseNumber    string
	Type          string
	Style         string
	FileDate      string
	Status        string
	CourtLocation string
	Result        int
	Message       string
	Parties       []Party
	Attorneys     []Attorney
	Hearings      []Hearing
	Documents     []DocumentRef
}

// Party is one litigant on a case.
type Party struct {
	Type         string
	FirstName    string
	MiddleName   string
	LastName     string
	NickName     string
	BusinessName string
	FullName     string
	IsDefendant  bool
}

// Attorney is counsel of record on a case.
type Attorney struct {
	FirstName    string
	MiddleName   string
	LastName     string
	Representing string
	BarNumber    string
	IsLead       bool
}

// Hearing is one calendared event on a case.
type Hearing struct {
	HearingID string
	Calendar  string
	Type      string
	Date      string
	Time      string
	Result    string
}

// DocumentRef identifies one filed document. Content is empty until the
// document source has been queried; ownership of Content transfers to the
// RecordSink on persist.
type DocumentRef struct {
	DocumentID string
	Name       string
	Content    []byte
	SHA256     string
}

// Outcome classifies the terminal state of one case identifier.
type Outcome string

// Outcome values recorded per case.
const (
	OutcomeSucceeded   Outcome = "succeeded"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeFailed      Outcome = "failed"
	OutcomeInterrupted Outcome = "interrupted"
)

// CaseResult is the per-identifier outcome recorded for reporting.
type CaseResult struct {
	Identifier string    `json:"identifier"`
	CaseNumber string    `json:"case_number,omitempty"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Attempts   int       `json:"attempts"`
	Documents  int       `json:"documents"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunSummary aggregates outcomes across one ingestion run.
type RunSummary struct {
	RunID       string       `json:"run_id"`
	Total       int          `json:"total"`
	Succeeded   int          `json:"succeeded"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	Interrupted int          `json:"interrupted"`
	Started     time.Time    `json:"started"`
	Finished    time.Time    `json:"finished"`
	Results     []CaseResult `json:"results"`
}

// Record folds one case result into the summary counters.
func (s *RunSummary) Record(res CaseResult) {
	s.Total++
	switch res.Outcome {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeInterrupted:
		s.Interrupted++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, res)
}
