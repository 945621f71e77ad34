// Package retry executes a single provider call with bounded retry on
// transient failures. Fatal errors abort immediately; transient errors are
// retried with exponential backoff and jitter until the attempt budget is
// spent, at which point the last error is wrapped in an ExhaustedError.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/codefionn/agentschnell/internal/consts"
	"github.com/codefionn/agentschnell/internal/llm"
	"github.com/codefionn/agentschnell/internal/logger"
)

// Policy bounds one logical call.
type Policy struct {
	// MaxAttempts is the total attempt budget including the first call.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff; the jitter added to each
	// sleep is drawn from [0, BaseDelay).
	BaseDelay time.Duration
	// AttemptTimeout bounds each individual attempt. Exceeding it is a
	// transient transport failure, not a fatal error.
	AttemptTimeout time.Duration
}

// DefaultPolicy absorbs brief upstream connection resets without materially
// slowing the caller.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    consts.DefaultMaxAttempts,
		BaseDelay:      consts.DefaultRetryBaseDelay,
		AttemptTimeout: consts.Timeout2Minutes,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = consts.DefaultRetryBaseDelay
	}
	return p
}

// ExhaustedError reports that every attempt against one provider failed with
// a transient error. It is terminal for that provider; the router reacts by
// moving to the next configured provider.
type ExhaustedError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %d attempt(s) exhausted: %v", e.Provider, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%d attempt(s) exhausted: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// IsExhausted reports whether err is a retry exhaustion.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedError
	return errors.As(err, &exhausted)
}

// Execute runs fn under the policy. fn receives a context bounded by the
// per-attempt timeout; the parent ctx cancels in-flight attempts and backoff
// sleeps alike.
func Execute(ctx context.Context, provider string, policy Policy, fn func(context.Context) (*llm.CompletionResponse, error)) (*llm.CompletionResponse, error) {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		resp, err := runAttempt(ctx, policy.AttemptTimeout, fn)
		if err == nil {
			return resp, nil
		}

		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if !llm.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		if attempt >= policy.MaxAttempts {
			break
		}

		delay := backoffDelay(policy.BaseDelay, attempt)
		if hint := llm.RetryAfterHint(err); hint > delay {
			delay = hint
		}

		logger.Debug("retry: %s attempt %d/%d failed (%v), sleeping %v", provider, attempt, policy.MaxAttempts, err, delay)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &ExhaustedError{Provider: provider, Attempts: policy.MaxAttempts, Err: lastErr}
}

// runAttempt bounds one attempt with the per-attempt deadline. A deadline
// breach surfaces as a transient transport error so the retry loop treats it
// like any other flaky round trip; parent cancellation keeps its identity.
func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) (*llm.CompletionResponse, error)) (*llm.CompletionResponse, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	resp, err := fn(attemptCtx)
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &llm.Error{Kind: llm.KindTransport, Err: err, Message: "attempt deadline exceeded"}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, err
}

// backoffDelay is base * 2^(attempt-1) plus random jitter in [0, base).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	shift := uint(attempt - 1)
	if shift > 16 {
		shift = 16
	}
	delay := base * time.Duration(1<<shift)
	jitter := time.Duration(rand.Int63n(int64(base)))
	return delay + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
