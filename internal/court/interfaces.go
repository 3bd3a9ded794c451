package court

import (
	"context"
	"io"
	"time"
)

// ChallengeSolver produces solved challenge tokens. Solving is slow (tens of
// seconds) and may fail; callers own retry behavior.
type ChallengeSolver interface {
	Solve(ctx context.Context) (ChallengeToken, error)
}

// CredentialIssuer exchanges a solved challenge for an access credential.
// The token is consumed whether or not the exchange succeeds.
type CredentialIssuer interface {
	Issue(ctx context.Context, token ChallengeToken) (Credential, error)
}

// CredentialSource exposes the current access credential to case fetchers.
type CredentialSource interface {
	Current() Credential
	Invalidate()
}

// CaseSource fetches raw case data for an identifier using a credential.
type CaseSource interface {
	FetchCase(ctx context.Context, caseID string, cred Credential) (*CaseRecord, error)
}

// DocumentSource fetches one document's binary content. Document downloads
// are not gated by the rotated credential.
type DocumentSource interface {
	FetchDocument(ctx context.Context, documentID string) ([]byte, error)
}

// RecordSink persists normalized case records and answers existence checks
// used for deduplication.
type RecordSink interface {
	Exists(ctx context.Context, caseNumber string) (bool, error)
	Persist(ctx context.Context, record *CaseRecord) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for integrity tracking.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
