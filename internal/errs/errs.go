// Package errs contains the error taxonomy shared across layers.
// Handlers map these to HTTP statuses; the job runner uses them to
// decide between retrying and failing a job terminally.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates a missing or invalid identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the requester does not own the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation indicates malformed input, rejected before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a lost artifact-activation race. Retryable:
	// re-running the operation re-reads fresh state.
	ErrConflict = errors.New("conflict")

	// ErrUpstreamFormat indicates a model response that failed schema
	// validation. Retried once, then degraded to a default.
	ErrUpstreamFormat = errors.New("upstream format error")

	// ErrUpstreamUnavailable indicates a provider or model call failure.
	// Retried with backoff, then surfaced as a job failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// InsufficientDataError reports an unmet eligibility precondition.
// Terminal: never retried.
type InsufficientDataError struct {
	Required int
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d emails, need %d", e.Actual, e.Required)
}

// IsRetryable reports whether an error class is worth retrying with backoff.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var insufficient *InsufficientDataError
	if errors.As(err, &insufficient) {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrUnauthenticated):
		return false
	}
	return true
}
