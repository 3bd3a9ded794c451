package auth

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
	"github.com/openrecords/caseharvester/internal/metrics"
)

// TokenTaker hands out single-use challenge tokens. *Buffer satisfies it.
type TokenTaker interface {
	Take(ctx context.Context) (court.ChallengeToken, error)
}

// RotatorConfig controls CredentialRotator behavior.
type RotatorConfig struct {
	// RefreshInterval is the scheduled cadence R between credential swaps.
	RefreshInterval time.Duration
	// RetryBackoff is the shorter delay used after a failed refresh.
	RetryBackoff time.Duration
	// TakeTimeout bounds how long one refresh waits for a challenge token.
	TakeTimeout time.Duration
}

func (c RotatorConfig) withDefaults() RotatorConfig {
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 600 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 15 * time.Second
	}
	if c.TakeTimeout <= 0 {
		c.TakeTimeout = 60 * time.Second
	}
	return c
}

// Rotator owns the current access credential. Readers get it through
// Current, which never observes a half-written value: swaps go through an
// atomic pointer and only happen after the issuer succeeds. A failed refresh
// keeps the prior credential in service.
type Rotator struct {
	tokens TokenTaker
	issuer court.CredentialIssuer
	clock  court.Clock
	cfg    RotatorConfig
	logger *zap.Logger

	current atomic.Pointer[court.Credential]
	kick    chan struct{}
}

// NewRotator constructs a Rotator. Start must succeed before Current is
// meaningful.
func NewRotator(
	tokens TokenTaker,
	issuer court.CredentialIssuer,
	clock court.Clock,
	cfg RotatorConfig,
	logger *zap.Logger,
) *Rotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		tokens: tokens,
		issuer: issuer,
		clock:  clock,
		cfg:    cfg.withDefaults(),
		logger: logger,
		kick:   make(chan struct{}, 1),
	}
}

// Start blocks until the initial credential is obtained, retrying on the
// refresh backoff. This is the only point where the rotator blocks callers.
func (r *Rotator) Start(ctx context.Context) error {
	for {
		err := r.refresh(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("initial credential: %w", err)
		}
		r.logger.Warn("initial credential acquisition failed, retrying",
			zap.Error(err),
			zap.Duration("backoff", r.cfg.RetryBackoff),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("initial credential: %w", ctx.Err())
		case <-time.After(r.cfg.RetryBackoff):
		}
	}
}

// Run refreshes the credential on the configured interval and whenever
// Invalidate fires, until the context finishes. Refreshes are serialized by
// this single goroutine, so concurrent Invalidate calls coalesce into at
// most one in-flight refresh.
func (r *Rotator) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.kick:
		case <-retry:
		}
		retry = nil
		if err := r.refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("credential refresh failed, keeping prior credential",
				zap.Error(err),
				zap.Duration("retry_in", r.cfg.RetryBackoff),
			)
			retry = time.After(r.cfg.RetryBackoff)
		}
	}
}

// Current returns the last successfully issued credential.
func (r *Rotator) Current() court.Credential {
	cred := r.current.Load()
	if cred == nil {
		return court.Credential{}
	}
	return *cred
}

// Invalidate signals that the current credential was rejected downstream and
// an out-of-band refresh is needed. It never blocks; redundant signals while
// a refresh is pending are dropped.
func (r *Rotator) Invalidate() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Rotator) refresh(ctx context.Context) error {
	takeCtx, cancel := context.WithTimeout(ctx, r.cfg.TakeTimeout)
	defer cancel()

	tok, err := r.tokens.Take(takeCtx)
	if err != nil {
		metrics.ObserveCredentialRefresh("no_token")
		return fmt.Errorf("take challenge token: %w", err)
	}

	cred, err := r.issuer.Issue(ctx, tok)
	if err != nil {
		metrics.ObserveCredentialRefresh("error")
		return fmt.Errorf("issue credential: %w", err)
	}
	if cred.Token == "" {
		metrics.ObserveCredentialRefresh("error")
		return fmt.Errorf("issuer returned empty credential")
	}
	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = r.clock.Now()
	}
	cred.TTL = r.cfg.RefreshInterval

	r.current.Store(&cred)
	metrics.ObserveCredentialRefresh("ok")
	r.logger.Info("credential refreshed", zap.Time("issued_at", cred.IssuedAt))
	return nil
}
