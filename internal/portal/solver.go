package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

const defaultSolverURL = "https://api.capsolver.com"

// SolverConfig captures the parameters for the challenge solving service.
type SolverConfig struct {
	// APIURL is the solver endpoint; defaults to the hosted service.
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	// APIKey authenticates with the solver.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// SiteKey is the portal's challenge site key.
	SiteKey string `mapstructure:"site_key" yaml:"site_key"`
	// PageURL is the portal page the challenge protects.
	PageURL string `mapstructure:"page_url" yaml:"page_url"`
	// PollInterval is the wait between task result polls.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Timeout bounds one full solve.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

func (c SolverConfig) withDefaults() SolverConfig {
	if c.APIURL == "" {
		c.APIURL = defaultSolverURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

// Solver obtains solved challenge tokens from a hosted solving service using
// its two-step create/poll task API.
type Solver struct {
	cfg    SolverConfig
	client *http.Client
	clock  court.Clock
	logger *zap.Logger
}

// NewSolver builds a Solver. The API key and site key are required.
func NewSolver(cfg SolverConfig, clock court.Clock, logger *zap.Logger) (*Solver, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("solver api key is required")
	}
	if cfg.SiteKey == "" {
		return nil, fmt.Errorf("site key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		clock:  clock,
		logger: logger,
	}, nil
}

type solverTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           string `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorDescription string `json:"errorDescription"`
	Status           string `json:"status"`
	Solution         struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

// Solve submits a challenge task and polls until the service returns a
// solution or the solve budget runs out.
func (s *Solver) Solve(ctx context.Context) (court.ChallengeToken, error) {
	solveCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	taskID, err := s.createTask(solveCtx)
	if err != nil {
		return court.ChallengeToken{}, fmt.Errorf("create solve task: %w", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-solveCtx.Done():
			return court.ChallengeToken{}, fmt.Errorf("solve task %s: %w", taskID, solveCtx.Err())
		case <-ticker.C:
		}

		result, err := s.taskResult(solveCtx, taskID)
		if err != nil {
			return court.ChallengeToken{}, fmt.Errorf("solve task %s: %w", taskID, err)
		}
		switch result.Status {
		case "ready":
			if result.Solution.GRecaptchaResponse == "" {
				return court.ChallengeToken{}, fmt.Errorf("solve task %s: empty solution", taskID)
			}
			s.logger.Debug("challenge solved", zap.String("task_id", taskID))
			return court.ChallengeToken{
				Value:     result.Solution.GRecaptchaResponse,
				CreatedAt: s.clock.Now(),
			}, nil
		case "processing":
			continue
		default:
			return court.ChallengeToken{}, fmt.Errorf("solve task %s: unexpected status %q", taskID, result.Status)
		}
	}
}

func (s *Solver) createTask(ctx context.Context) (string, error) {
	body := map[string]any{
		"clientKey": s.cfg.APIKey,
		"task": solverTask{
			Type:       "ReCaptchaV2TaskProxyLess",
			WebsiteURL: s.cfg.PageURL,
			WebsiteKey: s.cfg.SiteKey,
		},
	}
	var resp createTaskResponse
	if err := s.post(ctx, "/createTask", body, &resp); err != nil {
		return "", err
	}
	if resp.ErrorID != 0 {
		return "", fmt.Errorf("solver error: %s", resp.ErrorDescription)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("solver returned no task id")
	}
	return resp.TaskID, nil
}

func (s *Solver) taskResult(ctx context.Context, taskID string) (*taskResultResponse, error) {
	body := map[string]any{
		"clientKey": s.cfg.APIKey,
		"taskId":    taskID,
	}
	var resp taskResultResponse
	if err := s.post(ctx, "/getTaskResult", body, &resp); err != nil {
		return nil, err
	}
	if resp.ErrorID != 0 {
		return nil, fmt.Errorf("solver error: %s", resp.ErrorDescription)
	}
	return &resp, nil
}

func (s *Solver) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(s.cfg.APIURL, path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("solver status %d: %w", resp.StatusCode, court.ErrServer)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solver status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
