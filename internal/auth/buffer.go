// Package auth maintains the solved-challenge buffer and the rotating access
// credential that gate every case fetch.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
	"github.com/openrecords/caseharvester/internal/metrics"
)

// BufferConfig controls ChallengeBuffer behavior.
type BufferConfig struct {
	// Size is the target number of pre-solved tokens kept ready.
	Size int
	// SolveRetryDelay is the pause before retrying a failed solve.
	SolveRetryDelay time.Duration
	// PollInterval bounds how long the replenisher sleeps between occupancy
	// checks when nothing wakes it.
	PollInterval time.Duration
}

func (c BufferConfig) withDefaults() BufferConfig {
	if c.Size <= 0 {
		c.Size = 2
	}
	if c.SolveRetryDelay <= 0 {
		c.SolveRetryDelay = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// Buffer keeps a bounded pool of solved challenge tokens topped up by a
// background replenisher. Solving is expensive (it is billed per solve), so
// in-flight solves never exceed the number of missing slots.
type Buffer struct {
	solver court.ChallengeSolver
	clock  court.Clock
	cfg    BufferConfig
	logger *zap.Logger

	tokens chan court.ChallengeToken
	wake   chan struct{}

	mu       sync.Mutex
	inflight int
}

// NewBuffer constructs a Buffer. Run must be started for the buffer to fill.
func NewBuffer(solver court.ChallengeSolver, clock court.Clock, cfg BufferConfig, logger *zap.Logger) *Buffer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffer{
		solver: solver,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
		tokens: make(chan court.ChallengeToken, cfg.Size),
		wake:   make(chan struct{}, 1),
	}
}

// Run drives the replenisher until the context finishes. It launches one
// solve per missing slot and re-checks occupancy whenever a token is taken,
// a solve resolves, or the poll interval elapses.
func (b *Buffer) Run(ctx context.Context) {
	for {
		b.launchMissing(ctx)
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		case <-time.After(b.cfg.PollInterval):
		}
	}
}

// Take removes one token from the buffer, blocking until a token is
// available or ctx finishes. Tokens are never handed out twice.
func (b *Buffer) Take(ctx context.Context) (court.ChallengeToken, error) {
	select {
	case tok := <-b.tokens:
		metrics.SetChallengeBufferOccupancy(len(b.tokens))
		b.signal()
		return tok, nil
	case <-ctx.Done():
		return court.ChallengeToken{}, fmt.Errorf("%w: %v", court.ErrNoToken, ctx.Err())
	}
}

// Occupancy reports how many solved tokens are currently buffered.
func (b *Buffer) Occupancy() int {
	return len(b.tokens)
}

func (b *Buffer) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Buffer) launchMissing(ctx context.Context) {
	b.mu.Lock()
	missing := b.cfg.Size - len(b.tokens) - b.inflight
	if missing < 0 {
		missing = 0
	}
	b.inflight += missing
	b.mu.Unlock()

	for i := 0; i < missing; i++ {
		go b.solveOne(ctx)
	}
}

func (b *Buffer) solveOne(ctx context.Context) {
	defer func() {
		b.mu.Lock()
		b.inflight--
		b.mu.Unlock()
		b.signal()
	}()

	tok, err := b.solver.Solve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.ObserveChallengeSolve("error")
		b.logger.Warn("challenge solve failed",
			zap.Error(err),
			zap.Duration("retry_in", b.cfg.SolveRetryDelay),
		)
		// Hold the slot through the delay so the failed solve is not
		// immediately relaunched in parallel.
		select {
		case <-ctx.Done():
		case <-time.After(b.cfg.SolveRetryDelay):
		}
		return
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = b.clock.Now()
	}

	select {
	case b.tokens <- tok:
		metrics.ObserveChallengeSolve("ok")
		metrics.SetChallengeBufferOccupancy(len(b.tokens))
		b.logger.Debug("challenge token buffered",
			zap.Int("occupancy", len(b.tokens)),
			zap.Int("target", b.cfg.Size),
		)
	case <-ctx.Done():
	}
}
