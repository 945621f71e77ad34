package provider

import (
	"os"
	"strings"
)

// providerEnvVars maps canonical provider names to the environment variables
// that can supply their API keys.
var providerEnvVars = map[string][]string{
	"openai":     {"OPENAI_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"deepseek":   {"DEEPSEEK_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
}

// canonicalProviderName normalizes provider aliases so they share the same
// environment-variable mapping.
func canonicalProviderName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "claude":
		return "anthropic"
	case "open-router":
		return "openrouter"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// knownProvider reports whether name resolves to a supported backend.
func knownProvider(name string) bool {
	_, ok := providerEnvVars[canonicalProviderName(name)]
	return ok
}

// resolveAPIKey returns the API key to use for a provider. If an explicit key
// is provided it takes precedence, otherwise the function falls back to known
// environment variables. Returned value is trimmed; empty string signals that
// no key is available.
func resolveAPIKey(providerName, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}

	canonical := canonicalProviderName(providerName)
	for _, envVar := range providerEnvVars[canonical] {
		if value := strings.TrimSpace(os.Getenv(envVar)); value != "" {
			return value
		}
	}
	return ""
}

// ResolveAPIKey exposes the environment-variable lookup for external packages
// that need to check credentials without building a manager.
func ResolveAPIKey(providerName string) string {
	return resolveAPIKey(providerName, "")
}

// EnvVarHints returns the known environment variables for a provider, useful
// for contextual error messages.
func EnvVarHints(providerName string) []string {
	hints := providerEnvVars[canonicalProviderName(providerName)]
	out := make([]string, len(hints))
	copy(out, hints)
	return out
}
