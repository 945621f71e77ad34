package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codefionn/agentschnell/internal/llm"
)

func transientErr(msg string) error {
	return &llm.Error{Kind: llm.KindTransport, Provider: "test", Message: msg}
}

func fatalErr(msg string) error {
	return &llm.Error{Kind: llm.KindAuthentication, Provider: "test", Message: msg}
}

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
	}
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	var calls atomic.Int32

	resp, err := Execute(context.Background(), "test", fastPolicy(3), func(ctx context.Context) (*llm.CompletionResponse, error) {
		calls.Add(1)
		return &llm.CompletionResponse{Content: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("unexpected response %+v", resp)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls.Load())
	}
}

func TestExecute_RecoversWithinBudget(t *testing.T) {
	var calls atomic.Int32

	resp, err := Execute(context.Background(), "test", fastPolicy(3), func(ctx context.Context) (*llm.CompletionResponse, error) {
		if calls.Add(1) <= 2 {
			return nil, transientErr("connection reset")
		}
		return &llm.CompletionResponse{Content: "third time"}, nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if resp.Content != "third time" {
		t.Errorf("unexpected response %+v", resp)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 calls, got %d", calls.Load())
	}
}

func TestExecute_ExhaustsTransientErrors(t *testing.T) {
	var calls atomic.Int32

	_, err := Execute(context.Background(), "test", fastPolicy(3), func(ctx context.Context) (*llm.CompletionResponse, error) {
		calls.Add(1)
		return nil, transientErr("still flaky")
	})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", exhausted.Attempts)
	}
	if !llm.IsTransient(exhausted.Err) {
		t.Errorf("expected wrapped transient error, got %v", exhausted.Err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected exactly 3 calls, got %d", calls.Load())
	}
	if !IsExhausted(err) {
		t.Error("IsExhausted must match")
	}
}

func TestExecute_FatalAbortsImmediately(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()

	_, err := Execute(context.Background(), "test", Policy{MaxAttempts: 5, BaseDelay: time.Second}, func(ctx context.Context) (*llm.CompletionResponse, error) {
		calls.Add(1)
		return nil, fatalErr("invalid key")
	})
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if IsExhausted(err) {
		t.Error("fatal errors must not be wrapped as exhaustion")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 call for fatal error, got %d", calls.Load())
	}
	// No backoff sleep may have happened.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("fatal error slept for %v", elapsed)
	}
}

func TestExecute_CancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	_, err := Execute(ctx, "test", Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond}, func(ctx context.Context) (*llm.CompletionResponse, error) {
		calls.Add(1)
		cancel()
		return nil, transientErr("flaky")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls.Load())
	}
}

func TestExecute_AttemptDeadlineIsTransient(t *testing.T) {
	var calls atomic.Int32

	policy := Policy{
		MaxAttempts:    2,
		BaseDelay:      time.Millisecond,
		AttemptTimeout: 10 * time.Millisecond,
	}

	_, err := Execute(context.Background(), "test", policy, func(ctx context.Context) (*llm.CompletionResponse, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !IsExhausted(err) {
		t.Fatalf("expected exhaustion after deadline breaches, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected deadline breach to be retried, got %d calls", calls.Load())
	}
}

func TestExecute_HonorsRetryAfterHint(t *testing.T) {
	var calls atomic.Int32
	start := time.Now()

	hinted := &llm.Error{
		Kind:       llm.KindRateLimit,
		Provider:   "test",
		Status:     429,
		RetryAfter: 60 * time.Millisecond,
	}

	_, err := Execute(context.Background(), "test", Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, func(ctx context.Context) (*llm.CompletionResponse, error) {
		if calls.Add(1) == 1 {
			return nil, hinted
		}
		return &llm.CompletionResponse{Content: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected backoff to honor 60ms hint, slept only %v", elapsed)
	}
}

func TestBackoffDelay_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 1; attempt <= 4; attempt++ {
		expected := base * time.Duration(1<<uint(attempt-1))
		for i := 0; i < 20; i++ {
			d := backoffDelay(base, attempt)
			if d < expected || d >= expected+base {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", attempt, d, expected, expected+base)
			}
		}
	}
}

func TestPolicyNormalized(t *testing.T) {
	p := Policy{}.normalized()
	if p.MaxAttempts != 1 {
		t.Errorf("expected at least 1 attempt, got %d", p.MaxAttempts)
	}
	if p.BaseDelay <= 0 {
		t.Errorf("expected positive base delay, got %v", p.BaseDelay)
	}
}
