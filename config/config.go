// Package config provides configuration management for the SocialWiz server.
// Configuration is assembled once at startup from defaults, an optional YAML
// file and environment variables, validated, and then passed explicitly into
// the components that need it. It is never mutated afterwards.
package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	Vision         VisionConfig         `yaml:"vision"`
	Modes          ModesConfig          `yaml:"modes"`
	Limits         LimitsConfig         `yaml:"limits"`
	Logging        LoggingConfig        `yaml:"logging"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8000)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout must cover the vision call plus the completion call
	// (default: 90s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for in-flight requests
	// during graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig configures the inference provider used to generate replies.
type LLMConfig struct {
	// Provider is the gollm provider name: groq, openai or mistral
	// (default: "groq")
	Provider string `yaml:"provider"`

	// Endpoint overrides the provider's chat completions URL
	Endpoint string `yaml:"endpoint"`

	// Model is the model identifier (default: "llama-3.3-70b-versatile")
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. Required.
	// Falls back to the GROQ_API_KEY environment variable.
	APIKey string `yaml:"api_key"`

	// MaxTokens caps the completion length (default: 1024)
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds a single completion call (default: 30s)
	Timeout time.Duration `yaml:"timeout"`
}

// ChatProviders are the gollm providers that speak the chat completions
// protocol with role-tagged messages.
var ChatProviders = []string{"groq", "openai", "mistral"}

// VisionConfig configures the optional image description provider.
// An empty APIKey disables image analysis.
type VisionConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	Temperature float32       `yaml:"temperature"`
	TopP        float32       `yaml:"top_p"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Enabled reports whether image analysis can be attempted.
func (v VisionConfig) Enabled() bool {
	return strings.TrimSpace(v.APIKey) != ""
}

// ModesConfig holds the sampling parameters of each request mode.
type ModesConfig struct {
	Rewrite    ModeConfig `yaml:"rewrite"`
	Icebreaker ModeConfig `yaml:"icebreaker"`
	Curveball  ModeConfig `yaml:"curveball"`
}

// ModeConfig holds per-mode sampling parameters.
type ModeConfig struct {
	Temperature float64 `yaml:"temperature"`
}

// LimitsConfig bounds the size of accepted input.
type LimitsConfig struct {
	// MaxPromptTokens rejects prompts above this many tokens. 0 disables the check.
	MaxPromptTokens int `yaml:"max_prompt_tokens"`

	// MaxImageBytes is the largest accepted image payload
	MaxImageBytes int64 `yaml:"max_image_bytes"`

	// MaxBodyBytes is the largest accepted request body, image included
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// CircuitBreakerConfig configures the breaker guarding the inference provider.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed through while half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures that trips the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// DefaultConfig returns the configuration used when no file overrides it.
// Temperatures and models follow the values the service has always used.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    90 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Provider:  "groq",
			Model:     "llama-3.3-70b-versatile",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		Vision: VisionConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash-lite",
			Temperature: 0.1,
			TopP:        0.95,
			Timeout:     20 * time.Second,
		},
		Modes: ModesConfig{
			Rewrite:    ModeConfig{Temperature: 0.7},
			Icebreaker: ModeConfig{Temperature: 0.8},
			Curveball:  ModeConfig{Temperature: 0.8},
		},
		Limits: LimitsConfig{
			MaxPromptTokens: 4096,
			MaxImageBytes:   10 << 20,
			MaxBodyBytes:    15 << 20, // base64 inflates images by a third
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// LoadFile loads configuration from a YAML file. An empty filename loads
// defaults and environment variables only.
func LoadFile(filename string) (*Config, error) {
	if filename == "" {
		return LoadFromEnv()
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// LoadFromEnv builds a configuration from defaults and environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references in a single
// pass. Substituted values are never expanded again.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("invalid syntax: unterminated variable reference")
	}

	resolve := func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	}

	return os.Expand(s, resolve), nil
}

// Load loads configuration from an io.Reader. Values are decoded on top of
// DefaultConfig, then environment overrides are applied and the result is
// validated.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if strings.TrimSpace(expanded) != "" {
		if err := yaml.NewDecoder(strings.NewReader(expanded)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays the environment variables the service is deployed with.
func (c *Config) applyEnv() error {
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GROQ_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Vision.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Vision.Model = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks if the configuration is valid. A missing inference API key
// is an error: the service cannot answer any request without it.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("empty LLM provider")
	}
	if !slices.Contains(ChatProviders, c.LLM.Provider) {
		return fmt.Errorf("unsupported LLM provider %q: must be one of %s", c.LLM.Provider, strings.Join(ChatProviders, ", "))
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("missing LLM API key: set llm.api_key or GROQ_API_KEY")
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("negative LLM max tokens: %d", c.LLM.MaxTokens)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("negative LLM timeout: %v", c.LLM.Timeout)
	}

	if c.Vision.Enabled() && c.Vision.Model == "" {
		return fmt.Errorf("empty vision model")
	}
	if c.Vision.Timeout < 0 {
		return fmt.Errorf("negative vision timeout: %v", c.Vision.Timeout)
	}

	for name, mode := range map[string]ModeConfig{
		"rewrite":    c.Modes.Rewrite,
		"icebreaker": c.Modes.Icebreaker,
		"curveball":  c.Modes.Curveball,
	} {
		if mode.Temperature < 0 || mode.Temperature > 2 {
			return fmt.Errorf("invalid %s temperature: %v", name, mode.Temperature)
		}
	}

	if c.Limits.MaxPromptTokens < 0 {
		return fmt.Errorf("negative max prompt tokens: %d", c.Limits.MaxPromptTokens)
	}
	if c.Limits.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be positive")
	}
	if c.Limits.MaxBodyBytes < c.Limits.MaxImageBytes {
		return fmt.Errorf("max body bytes (%d) must not be smaller than max image bytes (%d)",
			c.Limits.MaxBodyBytes, c.Limits.MaxImageBytes)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold == 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}

	return nil
}
