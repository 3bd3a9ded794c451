package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

// CaseClient fetches case detail payloads from the portal.
type CaseClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewCaseClient builds a CaseClient.
func NewCaseClient(cfg Config, logger *zap.Logger) (*CaseClient, error) {
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
	return &CaseClient{cfg: cfg, client: client, logger: logger}, nil
}

// FetchCase retrieves and parses one case. The portal signals a miss inside
// a 200 envelope, so both the HTTP status and the envelope result are
// checked.
func (c *CaseClient) FetchCase(ctx context.Context, caseID string, cred court.Credential) (*court.CaseRecord, error) {
	if cred.Zero() {
		return nil, fmt.Errorf("no credential: %w", court.ErrCredentialRejected)
	}
	endpoint := joinURL(c.cfg.BaseURL, "api", "case", url.PathEscape(caseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("case-token", cred.Token)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", caseID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("case %s: %w", caseID, classifyStatus(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("case %s: read body: %w", caseID, err)
	}
	record, err := court.ParseCaseBody(body)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", caseID, err)
	}
	c.logger.Debug("case fetched",
		zap.String("case_id", caseID),
		zap.String("case_number", record.CaseNumber),
		zap.Int("documents", len(record.Documents)),
	)
	return record, nil
}
