package court

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors classifying external-capability failures. Wrapped values
// carry request context; these are the kinds the retry policy dispatches on.
var (
	// ErrNotFound means the case source returned a definitive miss.
	ErrNotFound = errors.New("case not found")
	// ErrParse means the response body could not be interpreted.
	ErrParse = errors.New("malformed response")
	// ErrCredentialRejected means the case source refused the credential.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrRateLimited means the source asked us to back off.
	ErrRateLimited = errors.New("rate limited")
	// ErrServer means the source failed on its side.
	ErrServer = errors.New("server error")
	// ErrPersist means the record sink could not store a record.
	ErrPersist = errors.New("persist failed")
	// ErrNoToken means no challenge token was available in time.
	ErrNoToken = errors.New("no challenge token available")
)

// IsTerminal reports whether the error is never worth retrying.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrParse) ||
		errors.Is(err, ErrPersist)
}

// IsTransient reports whether the error may clear on a later attempt.
// A deadline on one request is transient; cancellation ends the run and is
// neither transient nor terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if IsTerminal(err) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer) ||
		errors.Is(err, ErrCredentialRejected) || errors.Is(err, ErrNoToken) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Unclassified transport failures get the benefit of the doubt.
	return true
}
