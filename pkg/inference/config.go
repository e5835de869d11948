package inference

import (
	"log/slog"
	"time"
)

// Config holds provider configuration.
// Decoding settings are deliberately absent: they come from caption.Request.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // API key (optional for local providers)

	// Model
	Model string

	// Local executable (exec backend)
	Command string
	Args    []string

	// BeamSearchParams sends use_beam_search/best_of to OpenAI-compatible
	// servers. vLLM honors them; hosted OpenAI rejects unknown fields.
	BeamSearchParams bool

	// Timeouts
	Timeout time.Duration

	// Transport retries for failed requests. A successful response is
	// never requested again.
	MaxRetries int
	RetryDelay time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
// Examples: "http://localhost:8000/v1", "http://localhost:11434/v1"
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the captioning model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithCommand sets the executable and leading arguments for the exec backend.
func WithCommand(command string, args ...string) Option {
	return func(c *Config) {
		c.Command = command
		c.Args = args
	}
}

// WithBeamSearchParams toggles vLLM-style beam search fields.
func WithBeamSearchParams(enabled bool) Option {
	return func(c *Config) { c.BeamSearchParams = enabled }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures transport retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a local Ollama server running LLaVA.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "http://localhost:11434/v1",
		Model:            "llava",
		BeamSearchParams: true,
		Timeout:          120 * time.Second,
		MaxRetries:       0,
		RetryDelay:       500 * time.Millisecond,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
