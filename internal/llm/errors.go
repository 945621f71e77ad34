package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a provider error for retry and fallback decisions.
type Kind int

const (
	// KindConfiguration marks a local misconfiguration (missing credential,
	// malformed model reference). Never retried, never passed to a backend.
	KindConfiguration Kind = iota
	// KindAuthentication marks a credential rejected by the backend
	KindAuthentication
	// KindInvalidRequest marks a request the backend rejected as malformed
	KindInvalidRequest
	// KindTransport marks connection resets, timeouts and 5xx responses
	KindTransport
	// KindRateLimit marks a 429, optionally with a backoff hint
	KindRateLimit
)

// String returns the string representation of the error kind
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindInvalidRequest:
		return "invalid_request"
	case KindTransport:
		return "transport"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// Error is the uniform provider error. Transient kinds (transport, rate
// limit) may be retried; the remaining kinds are fatal for the provider
// that produced them.
type Error struct {
	Kind       Kind
	Provider   string
	Status     int           // HTTP status when the backend answered, 0 otherwise
	Message    string
	RetryAfter time.Duration // backoff hint from a 429, 0 when absent
	Err        error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Message == "" && e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether retrying the same call unchanged may succeed.
func (e *Error) Transient() bool {
	return e.Kind == KindTransport || e.Kind == KindRateLimit
}

// NewConfigurationError builds a fatal local configuration error.
func NewConfigurationError(provider, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     KindConfiguration,
		Provider: provider,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsTransient reports whether err is a provider error worth retrying.
func IsTransient(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Transient()
	}
	return false
}

// IsConfiguration reports whether err is a local configuration error.
func IsConfiguration(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind == KindConfiguration
	}
	return false
}

// RetryAfterHint returns the backend's suggested backoff, 0 when absent.
func RetryAfterHint(err error) time.Duration {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.RetryAfter
	}
	return 0
}

// classifyHTTPError maps a non-200 backend answer onto the taxonomy.
// 429 is transient with an optional Retry-After hint, other 4xx are fatal,
// 408 and 5xx are transport failures.
func classifyHTTPError(provider string, status int, body, retryAfter string) *Error {
	message := strings.TrimSpace(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: KindAuthentication, Provider: provider, Status: status, Message: message}
	case status == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimit,
			Provider:   provider,
			Status:     status,
			Message:    message,
			RetryAfter: parseRetryAfter(retryAfter),
		}
	case status == http.StatusRequestTimeout || status >= 500:
		return &Error{Kind: KindTransport, Provider: provider, Status: status, Message: message}
	default:
		return &Error{Kind: KindInvalidRequest, Provider: provider, Status: status, Message: message}
	}
}

// classifyTransportError wraps a failed round trip. Caller cancellation is
// passed through untouched so it keeps its identity for errors.Is checks;
// everything else (connection reset, dial failure, attempt deadline) is a
// transient transport error.
func classifyTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindTransport, Provider: provider, Err: err}
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
