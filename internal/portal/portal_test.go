package portal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func testClock() stubClock {
	return stubClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
}

const caseBody = `{
	"result": 0,
	"message": "",
	"data": {
		"caseNumber": "24CV428648",
		"type": "Civil",
		"style": "Acme v. Doe",
		"fileDate": "2024-05-01",
		"status": "Open",
		"courtLocation": "Downtown",
		"caseParties": [{"name": "Acme Corp", "type": "Plaintiff"}],
		"caseAttornies": [],
		"caseHearings": [],
		"caseEvents": [
			{
				"date": "2024-05-01",
				"description": "Complaint filed",
				"documents": [{"documentId": "doc%2B1%3D", "documentName": "Complaint (filed)"}]
			}
		]
	}
}`

func TestIssuerIssue(t *testing.T) {
	t.Parallel()

	var gotChallenge atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/case/token", r.URL.Path)
		gotChallenge.Store(r.Header.Get("recaptcha"))
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "portal-cred"})
	}))
	defer srv.Close()

	issuer, err := NewIssuer(Config{BaseURL: srv.URL}, testClock(), zap.NewNop())
	require.NoError(t, err)

	cred, err := issuer.Issue(context.Background(), court.ChallengeToken{Value: "solved-challenge"})
	require.NoError(t, err)
	require.Equal(t, "portal-cred", cred.Token)
	require.Equal(t, testClock().Now(), cred.IssuedAt)
	require.Equal(t, "solved-challenge", gotChallenge.Load())
}

func TestIssuerStatusMapping(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	issuer, err := NewIssuer(Config{BaseURL: srv.URL}, testClock(), zap.NewNop())
	require.NoError(t, err)

	_, err = issuer.Issue(context.Background(), court.ChallengeToken{Value: "x"})
	require.ErrorIs(t, err, court.ErrCredentialRejected)
}

func TestIssuerMissingToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	issuer, err := NewIssuer(Config{BaseURL: srv.URL}, testClock(), zap.NewNop())
	require.NoError(t, err)

	_, err = issuer.Issue(context.Background(), court.ChallengeToken{Value: "x"})
	require.ErrorIs(t, err, court.ErrParse)
}

func TestCaseClientFetchCase(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/case/24CV428648", r.URL.Path)
		require.Equal(t, "cred-token", r.Header.Get("case-token"))
		_, _ = w.Write([]byte(caseBody))
	}))
	defer srv.Close()

	client, err := NewCaseClient(Config{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	record, err := client.FetchCase(context.Background(), "24CV428648", court.Credential{Token: "cred-token", IssuedAt: time.Now()})
	require.NoError(t, err)
	require.Equal(t, "24CV428648", record.CaseNumber)
	require.Len(t, record.Documents, 1)
	require.Equal(t, "doc%2B1%3D", record.Documents[0].DocumentID)
}

func TestCaseClientRejectsZeroCredential(t *testing.T) {
	t.Parallel()

	client, err := NewCaseClient(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.FetchCase(context.Background(), "24CV428648", court.Credential{})
	require.ErrorIs(t, err, court.ErrCredentialRejected)
}

func TestCaseClientStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: court.ErrCredentialRejected},
		{name: "forbidden", status: http.StatusForbidden, want: court.ErrCredentialRejected},
		{name: "not found", status: http.StatusNotFound, want: court.ErrNotFound},
		{name: "rate limited", status: http.StatusTooManyRequests, want: court.ErrRateLimited},
		{name: "bad gateway", status: http.StatusBadGateway, want: court.ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client, err := NewCaseClient(Config{BaseURL: srv.URL}, zap.NewNop())
			require.NoError(t, err)

			_, err = client.FetchCase(context.Background(), "24CV428648", court.Credential{Token: "t", IssuedAt: time.Now()})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCaseClientEnvelopeMiss(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": 1, "message": "no such case", "data": null}`))
	}))
	defer srv.Close()

	client, err := NewCaseClient(Config{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.FetchCase(context.Background(), "24CV000000", court.Credential{Token: "t", IssuedAt: time.Now()})
	require.ErrorIs(t, err, court.ErrNotFound)
}

func TestDocumentClientFetchDocument(t *testing.T) {
	t.Parallel()

	content := []byte("%PDF-1.7 fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/doc/base64/doc", r.URL.Path)
		// The escaped base64 characters come back as their literals.
		require.Equal(t, "doc+1=", r.URL.Query().Get("docId"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"bytes": base64.StdEncoding.EncodeToString(content)},
		})
	}))
	defer srv.Close()

	client, err := NewDocumentClient(Config{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	got, err := client.FetchDocument(context.Background(), "doc%2B1%3D")
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestDocumentClientMissingContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	}))
	defer srv.Close()

	client, err := NewDocumentClient(Config{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.FetchDocument(context.Background(), "doc-1")
	require.ErrorIs(t, err, court.ErrParse)
}

func TestSolverSolve(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/createTask":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "solver-key", body["clientKey"])
			_ = json.NewEncoder(w).Encode(map[string]any{"errorId": 0, "taskId": "task-1"})
		case "/getTaskResult":
			if polls.Add(1) < 2 {
				_ = json.NewEncoder(w).Encode(map[string]any{"errorId": 0, "status": "processing"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errorId": 0,
				"status":  "ready",
				"solution": map[string]string{
					"gRecaptchaResponse": "solved-challenge",
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	solver, err := NewSolver(SolverConfig{
		APIURL:       srv.URL,
		APIKey:       "solver-key",
		SiteKey:      "site-key",
		PageURL:      "https://portal.example/search",
		PollInterval: 5 * time.Millisecond,
	}, testClock(), zap.NewNop())
	require.NoError(t, err)

	token, err := solver.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "solved-challenge", token.Value)
	require.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestSolverReportsServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errorId":          1,
			"errorDescription": "invalid api key",
		})
	}))
	defer srv.Close()

	solver, err := NewSolver(SolverConfig{
		APIURL:  srv.URL,
		APIKey:  "bad-key",
		SiteKey: "site-key",
	}, testClock(), zap.NewNop())
	require.NoError(t, err)

	_, err = solver.Solve(context.Background())
	require.ErrorContains(t, err, "invalid api key")
}

func TestSolverRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewSolver(SolverConfig{SiteKey: "s"}, testClock(), nil)
	require.Error(t, err)
	_, err = NewSolver(SolverConfig{APIKey: "k"}, testClock(), nil)
	require.Error(t, err)
}
