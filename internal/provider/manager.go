package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/codefionn/agentschnell/internal/llm"
	"github.com/codefionn/agentschnell/internal/logger"
	"github.com/codefionn/agentschnell/internal/securemem"
)

// fallbackOrder is the deterministic order in which configured providers are
// tried after the selected one. Only providers with a resolvable credential
// take part.
var fallbackOrder = []string{"openai", "anthropic", "deepseek", "openrouter"}

// Manager owns the read-only provider configuration for a process: which
// backends have credentials and which model each one should use. Credentials
// are resolved from the environment once at construction and held in locked
// memory; nothing mutates the manager after load.
type Manager struct {
	mu          sync.RWMutex
	credentials *securemem.Pool
	models      map[string]string // provider -> model override, "" uses the client default
}

// NewManager resolves credentials for all supported providers from the
// environment. Providers without a key are simply absent; whether that is an
// error depends on what the caller asks for.
func NewManager() *Manager {
	m := &Manager{
		credentials: securemem.NewPool(),
		models:      make(map[string]string),
	}

	for name := range providerEnvVars {
		if key := resolveAPIKey(name, ""); key != "" {
			m.credentials.Set(name, key)
		}
	}

	logger.Debug("provider: %d provider(s) with credentials", m.credentials.Count())
	return m
}

// SetCredential installs an explicit key for a provider, overriding the
// environment. Used by config files and tests.
func (m *Manager) SetCredential(providerName, key string) {
	name := canonicalProviderName(providerName)
	if strings.TrimSpace(key) == "" {
		m.credentials.Delete(name)
		return
	}
	m.credentials.Set(name, key)
}

// SetModel pins the model a provider uses when it participates as a fallback.
func (m *Manager) SetModel(providerName, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[canonicalProviderName(providerName)] = strings.TrimSpace(model)
}

// HasCredential reports whether a provider has a usable key.
func (m *Manager) HasCredential(providerName string) bool {
	return m.credentials.Has(canonicalProviderName(providerName))
}

// Configured returns the providers with credentials, in fallback order.
func (m *Manager) Configured() []string {
	names := make([]string, 0, len(fallbackOrder))
	for _, name := range fallbackOrder {
		if m.credentials.Has(name) {
			names = append(names, name)
		}
	}
	return names
}

// Chain builds the ordered provider sequence for a conversation: the selected
// reference first, then every other credentialed provider in fallback order
// with its configured (or default) model. The chain is deterministic for a
// given environment.
func (m *Manager) Chain(selected Ref) ([]Ref, error) {
	if !m.HasCredential(selected.Provider) {
		hints := EnvVarHints(selected.Provider)
		return nil, llm.NewConfigurationError(selected.Provider, "no API key configured (set %s)", strings.Join(hints, " or "))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	chain := []Ref{selected}
	for _, name := range fallbackOrder {
		if name == selected.Provider || !m.credentials.Has(name) {
			continue
		}
		chain = append(chain, Ref{Provider: name, Model: m.models[name]})
	}
	return chain, nil
}

// CreateClient builds the concrete client for a reference. A missing
// credential is a configuration error, never a request against the backend.
func (m *Manager) CreateClient(ref Ref) (llm.Client, error) {
	name := canonicalProviderName(ref.Provider)
	apiKey := m.credentials.GetString(name)
	if apiKey == "" {
		hints := EnvVarHints(name)
		return nil, llm.NewConfigurationError(name, "no API key configured (set %s)", strings.Join(hints, " or "))
	}

	switch name {
	case "openai":
		return llm.NewOpenAIClient(apiKey, ref.Model)
	case "anthropic":
		return llm.NewAnthropicClient(apiKey, ref.Model)
	case "deepseek":
		return llm.NewDeepSeekClient(apiKey, ref.Model)
	case "openrouter":
		return llm.NewOpenRouterClient(apiKey, ref.Model)
	default:
		return nil, llm.NewConfigurationError(name, "unsupported provider")
	}
}

// Close wipes all credentials.
func (m *Manager) Close() {
	m.credentials.Clear()
}

// MissingKeyHelp lists the environment variables that would enable the
// providers currently lacking credentials, for startup diagnostics.
func (m *Manager) MissingKeyHelp() string {
	missing := make([]string, 0, len(providerEnvVars))
	for name, vars := range providerEnvVars {
		if !m.credentials.Has(name) {
			missing = append(missing, fmt.Sprintf("%s (%s)", name, strings.Join(vars, ", ")))
		}
	}
	sort.Strings(missing)
	return strings.Join(missing, "; ")
}
