// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "research.toml"

// Config represents the research configuration.
type Config struct {
	LLM       LLMConfig          `toml:"llm"`      // Default LLM settings
	Profiles  map[string]Profile `toml:"profiles"` // Alternative LLM settings, referenced from clients.yaml
	Research  ResearchConfig     `toml:"research"`
	Search    SearchConfig       `toml:"search"`
	Price     PriceConfig        `toml:"price"`
	Storage   StorageConfig      `toml:"storage"`
	Telemetry TelemetryConfig    `toml:"telemetry"`
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
	Thinking     string `toml:"thinking"`      // Thinking level: auto|off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// Profile is an alternative LLM configuration.
type Profile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"`
	Thinking  string `toml:"thinking"`
}

// ResearchConfig tunes the research loop.
type ResearchConfig struct {
	MaxAttempts                int    `toml:"max_attempts"`
	TopK                       int    `toml:"top_k"`
	SearchMaxResults           int    `toml:"search_max_results"`
	AdditionalSearchMaxResults int    `toml:"additional_search_max_results"`
	DefaultQuestion            string `toml:"default_question"`
}

// SearchConfig selects and tunes the web search backend.
type SearchConfig struct {
	Backend           string  `toml:"backend"`     // duckduckgo (default), brave or tavily
	APIKeyEnv         string  `toml:"api_key_env"` // Defaults per backend
	Depth             string  `toml:"depth"`       // tavily: basic|advanced
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Timeout           int     `toml:"timeout"` // seconds
}

// PriceConfig tunes the price lookup.
type PriceConfig struct {
	Endpoint          string  `toml:"endpoint"`
	Currency          string  `toml:"currency"`
	Expr              string  `toml:"expr"` // jq expression over the response; $coin and $currency are bound
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Timeout           int     `toml:"timeout"` // seconds
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path           string `toml:"path"`            // Base directory for all persistent data
	RecordSessions bool   `toml:"record_sessions"` // Write a JSONL transcript per run
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc, stdout or noop
	Insecure bool   `toml:"insecure"` // Disable TLS (default false)
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Research: ResearchConfig{
			MaxAttempts:                2,
			TopK:                       5,
			SearchMaxResults:           5,
			AdditionalSearchMaxResults: 3,
			DefaultQuestion:            "What is the current price of Bitcoin and what is driving it?",
		},
		Search: SearchConfig{
			Backend:           "duckduckgo",
			RequestsPerSecond: 1,
			Timeout:           30,
		},
		Price: PriceConfig{
			Endpoint: "https://api.coingecko.com/api/v3/simple/price",
			Currency: "usd",
			Timeout:  15,
		},
		Storage: StorageConfig{
			Path: "~/.local/hekmatica",
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, returning defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the loader cannot.
func (c *Config) Validate() error {
	switch c.Search.Backend {
	case "", "duckduckgo", "brave", "tavily":
	default:
		return fmt.Errorf("search.backend: unknown backend %q", c.Search.Backend)
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "stdout", "noop":
	default:
		return fmt.Errorf("telemetry.protocol: unknown protocol %q", c.Telemetry.Protocol)
	}
	if c.Research.MaxAttempts < 0 {
		return fmt.Errorf("research.max_attempts: must not be negative")
	}
	if c.Research.TopK < 0 {
		return fmt.Errorf("research.top_k: must not be negative")
	}
	if c.LLM.RetryBackoff != "" {
		if _, err := time.ParseDuration(c.LLM.RetryBackoff); err != nil {
			return fmt.Errorf("llm.retry_backoff: %w", err)
		}
	}
	return nil
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// DefaultSearchKeyEnv returns the default environment variable for a search backend's key.
func DefaultSearchKeyEnv(backend string) string {
	switch backend {
	case "brave":
		return "BRAVE_API_KEY"
	case "tavily":
		return "TAVILY_API_KEY"
	default:
		return ""
	}
}

// GetSearchAPIKey returns the search backend key from the environment.
func (c *Config) GetSearchAPIKey() string {
	envVar := c.Search.APIKeyEnv
	if envVar == "" {
		envVar = DefaultSearchKeyEnv(c.Search.Backend)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// GetProfile returns the LLM config for a profile.
// Falls back to default LLM config if profile not found.
func (c *Config) GetProfile(name string) LLMConfig {
	if name == "" {
		return c.LLM
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return c.LLM
	}
	result := LLMConfig{
		Provider:     profile.Provider,
		Model:        profile.Model,
		APIKeyEnv:    profile.APIKeyEnv,
		MaxTokens:    profile.MaxTokens,
		BaseURL:      profile.BaseURL,
		Thinking:     profile.Thinking,
		MaxRetries:   c.LLM.MaxRetries,
		RetryBackoff: c.LLM.RetryBackoff,
	}
	if result.Provider == "" {
		result.Provider = c.LLM.Provider
	}
	if result.APIKeyEnv == "" && result.Provider == c.LLM.Provider {
		result.APIKeyEnv = c.LLM.APIKeyEnv
	}
	if result.MaxTokens == 0 {
		result.MaxTokens = c.LLM.MaxTokens
	}
	return result
}

// HasProfile reports whether a profile with name is configured.
func (c *Config) HasProfile(name string) bool {
	_, ok := c.Profiles[name]
	return ok
}

// StoragePath returns the storage directory with ~ expanded.
func (c *Config) StoragePath() string {
	return ExpandPath(c.Storage.Path)
}

// SessionsDir returns where run transcripts are written.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.StoragePath(), "sessions")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// SearchTimeout returns the search timeout as a duration.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.Timeout) * time.Second
}

// PriceTimeout returns the price lookup timeout as a duration.
func (c *Config) PriceTimeout() time.Duration {
	return time.Duration(c.Price.Timeout) * time.Second
}
