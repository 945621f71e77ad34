package provider

import (
	"strings"

	"github.com/codefionn/agentschnell/internal/llm"
)

// Ref is a parsed model reference of the form `provider/model`. OpenRouter
// routes by vendor-prefixed model identifiers, so it additionally accepts the
// nested form `openrouter/vendor/model`; the nested part is kept intact as
// the model identifier.
type Ref struct {
	Provider string
	Model    string
}

func (r Ref) String() string {
	if r.Model == "" {
		return r.Provider
	}
	return r.Provider + "/" + r.Model
}

// ParseRef splits a model reference into provider and model. Malformed or
// unknown references are configuration errors: they are the caller's mistake
// and must never reach a backend or a retry loop.
func ParseRef(reference string) (Ref, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Ref{}, llm.NewConfigurationError("", "model reference is empty")
	}

	parts := strings.SplitN(reference, "/", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return Ref{}, llm.NewConfigurationError("", "model reference %q must have the form provider/model", reference)
	}

	name := canonicalProviderName(parts[0])
	model := strings.TrimSpace(parts[1])

	if !knownProvider(name) {
		return Ref{}, llm.NewConfigurationError(name, "unknown provider in model reference %q (supported: openai, anthropic, deepseek, openrouter)", reference)
	}

	// Only OpenRouter knows what to do with a vendor-prefixed model id.
	if name != "openrouter" && strings.Contains(model, "/") {
		return Ref{}, llm.NewConfigurationError(name, "nested model identifier %q is only valid for openrouter", reference)
	}

	return Ref{Provider: name, Model: model}, nil
}
