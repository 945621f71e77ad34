package router

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderFailure records why one provider in the fallback chain gave up.
type ProviderFailure struct {
	Provider string
	Err      error
}

// AllProvidersError reports that every provider in the chain failed.
type AllProvidersError struct {
	Failures []ProviderFailure
}

func (e *AllProvidersError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Provider, f.Err)
	}
	return fmt.Sprintf("all providers failed: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the last provider's error, which is usually the most
// relevant one for exit-status decisions.
func (e *AllProvidersError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// MaxTurnsError reports that the tool-call loop hit its turn limit without
// the model producing a final answer.
type MaxTurnsError struct {
	Limit int
}

func (e *MaxTurnsError) Error() string {
	return fmt.Sprintf("conversation exceeded %d tool turns without completing", e.Limit)
}

// IsMaxTurns reports whether err is a turn-limit breach.
func IsMaxTurns(err error) bool {
	var maxErr *MaxTurnsError
	return errors.As(err, &maxErr)
}

// IsAllProvidersFailed reports whether err means the whole chain was tried.
func IsAllProvidersFailed(err error) bool {
	var allErr *AllProvidersError
	return errors.As(err, &allErr)
}
