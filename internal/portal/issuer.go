package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

// Issuer exchanges a solved challenge token for a portal access credential.
type Issuer struct {
	cfg    Config
	client *http.Client
	clock  court.Clock
	logger *zap.Logger
}

// NewIssuer builds an Issuer against the portal token endpoint.
func NewIssuer(cfg Config, clock court.Clock, logger *zap.Logger) (*Issuer, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("portal base url is required")
	}
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{cfg: cfg, client: client, clock: clock, logger: logger}, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Issue trades the solved challenge for an access credential. The challenge
// is consumed by the attempt either way.
func (i *Issuer) Issue(ctx context.Context, token court.ChallengeToken) (court.Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(i.cfg.BaseURL, "api", "case", "token"), nil)
	if err != nil {
		return court.Credential{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("recaptcha", token.Value)
	req.Header.Set("User-Agent", i.cfg.UserAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return court.Credential{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return court.Credential{}, fmt.Errorf("token request: %w", classifyStatus(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return court.Credential{}, fmt.Errorf("read token response: %w", err)
	}
	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return court.Credential{}, fmt.Errorf("token response: %w", court.ErrParse)
	}
	if parsed.Token == "" {
		return court.Credential{}, fmt.Errorf("token missing from response: %w", court.ErrParse)
	}

	i.logger.Debug("access credential issued")
	return court.Credential{
		Token:    parsed.Token,
		IssuedAt: i.clock.Now(),
	}, nil
}
