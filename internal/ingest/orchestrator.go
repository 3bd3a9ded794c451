// Package ingest implements the case ingestion pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openrecords/caseharvester/internal/court"
	"github.com/openrecords/caseharvester/internal/metrics"
	"github.com/openrecords/caseharvester/internal/progress"
)

// Config controls Orchestrator behavior.
type Config struct {
	// CaseWorkers bounds concurrent case processing.
	CaseWorkers int
	// DocumentWorkers bounds concurrent document downloads within one case.
	DocumentWorkers int
	// RequestTimeout bounds each external call.
	RequestTimeout time.Duration
	// Topic names the destination for completion events when a publisher
	// is configured.
	Topic string
}

func (c Config) withDefaults() Config {
	if c.CaseWorkers <= 0 {
		c.CaseWorkers = 3
	}
	if c.DocumentWorkers <= 0 {
		c.DocumentWorkers = 5
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	return c
}

// Orchestrator drives bounded-parallel case processing: dedup, fetch with
// the rotating credential, per-case document downloads, persistence, and
// outcome aggregation. One bad case never stalls the run.
type Orchestrator struct {
	cases     court.CaseSource
	documents court.DocumentSource
	creds     court.CredentialSource
	sink      court.RecordSink
	policy    *RetryPolicy
	clock     court.Clock
	idGen     court.IDGenerator
	hasher    court.Hasher
	publisher court.Publisher
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
}

// New constructs an Orchestrator. publisher and emitter may be nil.
func New(
	cases court.CaseSource,
	documents court.DocumentSource,
	creds court.CredentialSource,
	sink court.RecordSink,
	policy *RetryPolicy,
	clock court.Clock,
	idGen court.IDGenerator,
	hasher court.Hasher,
	publisher court.Publisher,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if policy == nil {
		policy = NewRetryPolicy(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cases:     cases,
		documents: documents,
		creds:     creds,
		sink:      sink,
		policy:    policy,
		clock:     clock,
		idGen:     idGen,
		hasher:    hasher,
		publisher: publisher,
		emitter:   emitter,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Run processes every identifier and returns the aggregated summary. Worker
// failures are isolated per case; cancellation finalizes remaining cases as
// interrupted rather than dropping them.
func (o *Orchestrator) Run(ctx context.Context, identifiers []string) court.RunSummary {
	summary := court.RunSummary{Started: o.clock.Now()}
	if o.idGen != nil {
		if id, err := o.idGen.NewID(); err == nil {
			summary.RunID = id
		}
	}

	o.mu.Lock()
	o.claimed = make(map[string]struct{}, len(identifiers))
	o.mu.Unlock()

	ids := make(chan string)
	results := make(chan court.CaseResult)

	var workers sync.WaitGroup
	for i := 0; i < o.cfg.CaseWorkers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			o.caseWorker(ctx, summary.RunID, ids, results)
		}()
	}

	go func() {
		defer close(ids)
		for _, id := range identifiers {
			ids <- id
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	for res := range results {
		summary.Record(res)
	}
	summary.Finished = o.clock.Now()

	o.logger.Info("ingestion run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("interrupted", summary.Interrupted),
	)
	return summary
}

func (o *Orchestrator) caseWorker(ctx context.Context, runID string, ids <-chan string, results chan<- court.CaseResult) {
	for id := range ids {
		metrics.IncActiveCaseWorkers()
		started := o.clock.Now()
		res := o.processCase(ctx, id)
		res.FinishedAt = o.clock.Now()
		metrics.DecActiveCaseWorkers()

		o.finalize(ctx, runID, res, started)
		results <- res
	}
}

// finalize records the outcome everywhere it is reported: metrics, the
// progress hub, and the optional completion topic.
func (o *Orchestrator) finalize(ctx context.Context, runID string, res court.CaseResult, started time.Time) {
	metrics.ObserveCaseOutcome(string(res.Outcome))
	if o.emitter != nil {
		o.emitter.Emit(progress.Event{
			RunID:      runID,
			Identifier: res.Identifier,
			CaseNumber: res.CaseNumber,
			Outcome:    res.Outcome,
			Reason:     res.Reason,
			Attempts:   res.Attempts,
			Documents:  res.Documents,
			TS:         res.FinishedAt,
			Dur:        res.FinishedAt.Sub(started),
		})
	}
	if o.publisher != nil {
		payload := map[string]any{
			"run_id":      runID,
			"identifier":  res.Identifier,
			"case_number": res.CaseNumber,
			"outcome":     string(res.Outcome),
			"reason":      res.Reason,
			"attempts":    res.Attempts,
			"timestamp":   res.FinishedAt.Format(time.RFC3339),
		}
		if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
			o.logger.Warn("publish case outcome failed",
				zap.String("identifier", res.Identifier),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) processCase(ctx context.Context, rawID string) court.CaseResult {
	res := court.CaseResult{Identifier: rawID}

	normalized := court.NormalizeCaseNumber(rawID)
	if normalized == "" {
		res.Outcome = court.OutcomeFailed
		res.Reason = "empty case identifier"
		return res
	}
	res.CaseNumber = normalized

	if ctx.Err() != nil {
		res.Outcome = court.OutcomeInterrupted
		res.Reason = "run canceled"
		return res
	}

	// Dedup before any network work: in-run claim plus sink existence on
	// the normalized input.
	if !o.claim(normalized) {
		res.Outcome = court.OutcomeSkipped
		res.Reason = "duplicate identifier in input"
		return res
	}
	if o.alreadyIngested(ctx, normalized) {
		res.Outcome = court.OutcomeSkipped
		res.Reason = "already ingested"
		return res
	}

	record, attempts, err := o.fetchCase(ctx, normalized)
	res.Attempts = attempts
	if err != nil {
		return o.failedOrInterrupted(ctx, res, err)
	}

	// The portal's canonical number can differ from the raw input; re-check
	// dedup on it so an alias never double-persists a case.
	if record.CaseNumber != normalized {
		res.CaseNumber = record.CaseNumber
		if !o.claim(record.CaseNumber) {
			res.Outcome = court.OutcomeSkipped
			res.Reason = "duplicate of " + record.CaseNumber
			return res
		}
		if o.alreadyIngested(ctx, record.CaseNumber) {
			res.Outcome = court.OutcomeSkipped
			res.Reason = "already ingested"
			return res
		}
	}

	if err := o.fetchDocuments(ctx, record); err != nil {
		return o.failedOrInterrupted(ctx, res, err)
	}

	if err := o.sink.Persist(ctx, record); err != nil {
		o.logger.Error("persist failed",
			zap.String("case_number", record.CaseNumber),
			zap.Error(err),
		)
		return o.failedOrInterrupted(ctx, res, fmt.Errorf("%w: %v", court.ErrPersist, err))
	}

	o.logger.Info("case ingested",
		zap.String("case_number", record.CaseNumber),
		zap.Int("documents", len(record.Documents)),
		zap.Int("attempts", attempts),
	)
	res.Outcome = court.OutcomeSucceeded
	res.Documents = len(record.Documents)
	return res
}

func (o *Orchestrator) failedOrInterrupted(ctx context.Context, res court.CaseResult, err error) court.CaseResult {
	if ctx.Err() != nil && !court.IsTerminal(err) {
		res.Outcome = court.OutcomeInterrupted
		res.Reason = "run canceled"
		return res
	}
	res.Outcome = court.OutcomeFailed
	res.Reason = reasonText(err)
	return res
}

func reasonText(err error) string {
	switch {
	case errors.Is(err, court.ErrNotFound):
		return "not found"
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

func (o *Orchestrator) claim(caseNumber string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.claimed[caseNumber]; ok {
		return false
	}
	o.claimed[caseNumber] = struct{}{}
	return true
}

func (o *Orchestrator) alreadyIngested(ctx context.Context, caseNumber string) bool {
	checkCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()
	exists, err := o.sink.Exists(checkCtx, caseNumber)
	if err != nil {
		// An unreachable sink surfaces again at persist time; the check is
		// an optimization, not a gate.
		o.logger.Warn("existence check failed", zap.String("case_number", caseNumber), zap.Error(err))
		return false
	}
	return exists
}

// fetchCase retrieves and parses one case under the retry policy. A rejected
// credential triggers exactly one Invalidate plus one immediate retry before
// the general policy takes over.
func (o *Orchestrator) fetchCase(ctx context.Context, caseID string) (*court.CaseRecord, int, error) {
	attempts := 0
	invalidated := false
	for {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		record, err := o.cases.FetchCase(callCtx, caseID, o.creds.Current())
		cancel()
		if err == nil {
			return record, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, err
		}

		if errors.Is(err, court.ErrCredentialRejected) && !invalidated {
			invalidated = true
			o.creds.Invalidate()
			o.logger.Warn("credential rejected, refresh requested",
				zap.String("case_id", caseID),
			)
			continue
		}

		if !o.policy.ShouldRetry(err, attempts) {
			return nil, attempts, err
		}
		if !o.sleep(ctx, o.policy.Backoff(attempts)) {
			return nil, attempts, ctx.Err()
		}
	}
}

// fetchDocuments downloads every document for the case through a bounded
// group. Any terminal document failure fails the whole case; a partial
// document set is never persisted as if complete.
func (o *Orchestrator) fetchDocuments(ctx context.Context, record *court.CaseRecord) error {
	if len(record.Documents) == 0 {
		return nil
	}
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.DocumentWorkers)
	for i := range record.Documents {
		g.Go(func() error {
			doc := &record.Documents[i]
			content, err := o.fetchDocument(groupCtx, doc.DocumentID)
			if err != nil {
				metrics.ObserveDocumentFetch("error")
				return fmt.Errorf("document %s: %w", doc.DocumentID, err)
			}
			metrics.ObserveDocumentFetch("ok")
			doc.Content = content
			if o.hasher != nil {
				if digest, hashErr := o.hasher.Hash(content); hashErr == nil {
					doc.SHA256 = digest
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) fetchDocument(ctx context.Context, documentID string) ([]byte, error) {
	attempts := 0
	for {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
		content, err := o.documents.FetchDocument(callCtx, documentID)
		cancel()
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if !o.policy.ShouldRetry(err, attempts) {
			return nil, fmt.Errorf("after %d attempts: %w", attempts, err)
		}
		if !o.sleep(ctx, o.policy.Backoff(attempts)) {
			return nil, ctx.Err()
		}
	}
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) bool {
	metrics.ObserveRetryDelay(d.Seconds())
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
