// Package retry is the single retry policy applied to external
// capability calls and job execution: capped attempts, exponential
// backoff, and a shared retryable-vs-terminal classification.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"replypilot-backend/internal/errs"
)

// Policy describes a bounded retry schedule.
type Policy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
}

// DefaultPolicy retries three times total with 500ms exponential backoff.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Do runs fn under the policy. Errors classified as terminal by
// errs.IsRetryable abort immediately; everything else is retried until
// the attempt cap is reached.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.MaxAttempts == 0 {
		p = DefaultPolicy()
	}
	backoff := retry.WithMaxRetries(p.MaxAttempts-1, retry.NewExponential(p.BaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errs.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
