// Package portal implements HTTP clients for the court records portal and
// the external challenge solving service.
package portal

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openrecords/caseharvester/internal/court"
)

const defaultUserAgent = "caseharvester/1.0"

// Config captures the parameters shared by the portal clients.
type Config struct {
	// BaseURL is the portal root, e.g. https://portal.scscourt.org.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Timeout bounds each HTTP request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// ProxyURL, when set, routes portal traffic through the proxy.
	ProxyURL string `mapstructure:"proxy_url" yaml:"proxy_url"`
	// UserAgent overrides the default request user agent.
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	return c
}

// newHTTPClient builds the shared transport. A proxy URL that does not parse
// is a construction error rather than a silent direct connection.
func newHTTPClient(cfg Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}, nil
}

// classifyStatus maps a non-200 portal status to an error kind the retry
// policy understands.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", status, court.ErrCredentialRejected)
	case status == http.StatusNotFound:
		return fmt.Errorf("status %d: %w", status, court.ErrNotFound)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("status %d: %w", status, court.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("status %d: %w", status, court.ErrServer)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

func joinURL(base string, parts ...string) string {
	u := strings.TrimRight(base, "/")
	for _, p := range parts {
		u += "/" + strings.Trim(p, "/")
	}
	return u
}
