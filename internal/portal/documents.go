package portal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

// DocumentClient downloads document content from the portal. Document
// requests carry no access credential.
type DocumentClient struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewDocumentClient builds a DocumentClient.
func NewDocumentClient(cfg Config, logger *zap.Logger) (*DocumentClient, error) {
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
	return &DocumentClient{cfg: cfg, client: client, logger: logger}, nil
}

type documentResponse struct {
	Data struct {
		Bytes string `json:"bytes"`
	} `json:"data"`
}

// FetchDocument downloads one document and returns its decoded content.
func (c *DocumentClient) FetchDocument(ctx context.Context, documentID string) ([]byte, error) {
	query := url.Values{"docId": {decodeDocumentID(documentID)}}
	endpoint := joinURL(c.cfg.BaseURL, "api", "doc", "base64", "doc") + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var parsed documentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("document response: %w", court.ErrParse)
	}
	if parsed.Data.Bytes == "" {
		return nil, fmt.Errorf("document content missing: %w", court.ErrParse)
	}
	content, err := base64.StdEncoding.DecodeString(parsed.Data.Bytes)
	if err != nil {
		return nil, fmt.Errorf("document content: %w", court.ErrParse)
	}
	c.logger.Debug("document fetched", zap.Int("bytes", len(content)))
	return content, nil
}

// decodeDocumentID reverses the percent escaping the portal applies to the
// base64 characters inside document identifiers.
func decodeDocumentID(id string) string {
	replacer := strings.NewReplacer("%3D", "=", "%2B", "+", "%2F", "/")
	return replacer.Replace(id)
}
