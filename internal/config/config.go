// Package config loads and persists the application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/codefionn/agentschnell/internal/consts"
)

// ProviderSettings overrides one provider's credentials and model choice.
// An explicit APIKey wins over the provider's environment variable.
type ProviderSettings struct {
	APIKey string `json:"api_key,omitempty"`
	Model  string `json:"model,omitempty"`
}

// RetrySettings tunes the per-provider retry loop.
type RetrySettings struct {
	MaxAttempts      int `json:"max_attempts"`
	BaseDelayMs      int `json:"base_delay_ms"`
	AttemptTimeoutMs int `json:"attempt_timeout_ms,omitempty"`
}

// CapabilitySettings switches collaborators on or off. A disabled capability
// is simply never provisioned; the model gets failed tool results instead.
type CapabilitySettings struct {
	Browser    bool `json:"browser"`
	Terminal   bool `json:"terminal"`
	CodeSearch bool `json:"code_search"`
}

// Config represents application configuration.
type Config struct {
	DefaultModel    string                      `json:"default_model"`
	Temperature     float64                     `json:"temperature"`
	MaxTokens       int                         `json:"max_tokens"`
	SystemPrompt    string                      `json:"system_prompt,omitempty"`
	MaxToolTurns    int                         `json:"max_tool_turns"`
	Retry           RetrySettings               `json:"retry"`
	Capabilities    CapabilitySettings          `json:"capabilities"`
	Providers       map[string]ProviderSettings `json:"providers,omitempty"`
	ConversationDir string                      `json:"conversation_dir,omitempty"`
	LogLevel        string                      `json:"log_level"`
	LogPath         string                      `json:"-"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "agentschnell")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", "agentschnell")
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, "agentschnell")
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", "agentschnell")
	}
}

func defaultStateDir() string {
	if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
		return filepath.Join(stateHome, "agentschnell")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "state", "agentschnell")
}

// DefaultConfig returns default configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultModel: "anthropic/claude-sonnet-4-0",
		Temperature:  0.7,
		MaxTokens:    consts.DefaultMaxTokens,
		MaxToolTurns: consts.DefaultMaxToolTurns,
		Retry: RetrySettings{
			MaxAttempts:      consts.DefaultMaxAttempts,
			BaseDelayMs:      int(consts.DefaultRetryBaseDelay / time.Millisecond),
			AttemptTimeoutMs: int(consts.Timeout2Minutes / time.Millisecond),
		},
		Capabilities: CapabilitySettings{
			Browser:    true,
			Terminal:   true,
			CodeSearch: true,
		},
		LogLevel: "info",
		LogPath:  filepath.Join(defaultStateDir(), "agentschnell.log"),
	}
}

// GetConfigPath returns the default config path.
func GetConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.json")
}

// Load reads configuration from path, filling unset fields with defaults.
// A missing file yields the default configuration.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.normalize()
	return config, nil
}

func (c *Config) normalize() {
	if c.DefaultModel == "" {
		c.DefaultModel = "anthropic/claude-sonnet-4-0"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = consts.DefaultMaxTokens
	}
	if c.MaxToolTurns <= 0 {
		c.MaxToolTurns = consts.DefaultMaxToolTurns
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = consts.DefaultMaxAttempts
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = int(consts.DefaultRetryBaseDelay / time.Millisecond)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(defaultStateDir(), "agentschnell.log")
	}
}

// RetryBaseDelay returns the configured base delay as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// RetryAttemptTimeout returns the per-attempt deadline, zero meaning none.
func (c *Config) RetryAttemptTimeout() time.Duration {
	return time.Duration(c.Retry.AttemptTimeoutMs) * time.Millisecond
}

// Provider returns the settings for a provider, zero-valued when absent.
func (c *Config) Provider(name string) ProviderSettings {
	if c.Providers == nil {
		return ProviderSettings{}
	}
	return c.Providers[strings.ToLower(strings.TrimSpace(name))]
}

// Save writes the configuration atomically.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
