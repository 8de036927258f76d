// Package backoff implements the retry governor that wraps planner calls and
// tool invocations. Retries are driven by a per-call-site Policy: failures
// are retried only when their fault kind is in the policy's retryable set,
// with exponential backoff and jitter between attempts.
package backoff

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/martinemde/orchestra/fault"
)

// Policy configures retry behavior for one call site. Model calls and tool
// calls typically carry different policies.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 behave as 1.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffCap bounds the exponential growth of the delay.
	BackoffCap time.Duration

	// RetryableKinds lists the fault kinds worth retrying. Failures of any
	// other kind are returned immediately.
	RetryableKinds []fault.Kind

	// OnRetry, if set, is called before each retry sleep with the failure,
	// the 1-indexed attempt that just failed, and the chosen delay.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultModelPolicy returns the policy applied to planner calls when the
// engine is constructed without an override.
func DefaultModelPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: time.Second,
		BackoffCap:  30 * time.Second,
		RetryableKinds: []fault.Kind{
			fault.KindModelUnavailable,
		},
	}
}

// DefaultToolPolicy returns the policy applied to tool invocations when the
// engine is constructed without an override.
func DefaultToolPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: 500 * time.Millisecond,
		BackoffCap:  10 * time.Second,
		RetryableKinds: []fault.Kind{
			fault.KindToolTransient,
			fault.KindStorageContention,
		},
	}
}

// Retryable reports whether a failure of the given kind is worth retrying
// under this policy.
func (p Policy) Retryable(kind fault.Kind) bool {
	for _, k := range p.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Delay computes the backoff delay before retry n (1-indexed):
// min(cap, base * 2^(n-1)) scaled by a random factor in [0.5, 1.0).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BackoffBase << (attempt - 1)
	if delay > p.BackoffCap || delay <= 0 {
		delay = p.BackoffCap
	}
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(delay) * jitter)
}

// RetriesExhaustedError is returned when every attempt failed with a
// retryable kind. It wraps the last underlying failure; the caller decides
// whether exhaustion is fatal.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}

// Execute runs op up to policy.MaxAttempts times. A failure whose kind is
// not retryable under the policy is returned immediately. Exhausting all
// attempts on retryable failures returns a *RetriesExhaustedError wrapping
// the last failure. Context cancellation during a backoff sleep aborts with
// the context error.
func Execute[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.Retryable(fault.KindOf(err)) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, &RetriesExhaustedError{Attempts: attempts, LastErr: lastErr}
}
