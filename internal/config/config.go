// Package config loads go-caption configuration from TOML or YAML with
// environment overrides for secrets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-caption/internal/log"
	"github.com/teslashibe/go-caption/pkg/camera"
	"github.com/teslashibe/go-caption/pkg/inference"
)

const (
	defaultBackend        = inference.BackendOpenAI
	defaultTimeoutSeconds = 120
)

// Inference contains generation backend settings. Empty BaseURL and Model
// take the backend's own defaults. Decoding parameters are fixed by the
// caption engine and intentionally not configurable.
type Inference struct {
	Backend          string   `toml:"backend" yaml:"backend"`
	BaseURL          string   `toml:"base_url" yaml:"base_url"`
	APIKey           string   `toml:"api_key" yaml:"api_key"`
	Model            string   `toml:"model" yaml:"model"`
	Command          string   `toml:"command" yaml:"command"`
	Args             []string `toml:"args" yaml:"args"`
	TimeoutSeconds   int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries       int      `toml:"max_retries" yaml:"max_retries"`
	BeamSearchParams bool     `toml:"beam_search_params" yaml:"beam_search_params"`
}

// Config encapsulates all configuration values for go-caption.
//
// Configuration sections:
//   - Camera: frame acquisition (driver, device, resolution, output path)
//   - Inference: the captioning backend
//   - ImagePath: caption this file instead of Camera.Output
//   - LogLevel: stderr log level
//   - Timeout: overall run limit in seconds, 0 for none
type Config struct {
	Camera    camera.Config `toml:"camera" yaml:"camera"`
	Inference Inference     `toml:"inference" yaml:"inference"`
	ImagePath string        `toml:"image_path" yaml:"image_path"`
	LogLevel  string        `toml:"log_level" yaml:"log_level"`
	Timeout   int           `toml:"timeout" yaml:"timeout"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Camera: camera.DefaultConfig(),
		Inference: Inference{
			Backend:          defaultBackend,
			TimeoutSeconds:   defaultTimeoutSeconds,
			BeamSearchParams: true,
		},
		LogLevel: log.DefaultLevel,
	}
}

// Load parses path (if non-empty), applies environment overrides,
// normalizes and validates. The format is chosen by extension:
// .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (use .toml, .yaml or .yml)", ext)
	}
	return nil
}

// applyEnv overrides secrets and the backend from the environment.
// CAPTION_API_KEY wins over the provider-specific keys.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("CAPTION_BACKEND")); v != "" {
		c.Inference.Backend = v
	}
	if v := strings.TrimSpace(os.Getenv("CAPTION_MODEL")); v != "" {
		c.Inference.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("CAPTION_BASE_URL")); v != "" {
		c.Inference.BaseURL = v
	}

	if c.Inference.APIKey != "" {
		return
	}
	keys := []string{"CAPTION_API_KEY"}
	switch strings.ToLower(c.Inference.Backend) {
	case inference.BackendGemini:
		keys = append(keys, "GEMINI_API_KEY")
	case inference.BackendOpenAI, "":
		keys = append(keys, "OPENAI_API_KEY")
	}
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			c.Inference.APIKey = v
			return
		}
	}
}

func (c *Config) normalize() error {
	c.Inference.Backend = strings.ToLower(strings.TrimSpace(c.Inference.Backend))
	if c.Inference.Backend == "" {
		c.Inference.Backend = defaultBackend
	}
	c.Inference.BaseURL = strings.TrimSpace(c.Inference.BaseURL)
	c.Inference.Model = strings.TrimSpace(c.Inference.Model)
	c.ImagePath = strings.TrimSpace(c.ImagePath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = log.DefaultLevel
	}

	if err := c.Camera.Normalize(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if problems := c.Camera.Validate(); len(problems) > 0 {
		return fmt.Errorf("camera: %s", strings.Join(problems, "; "))
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateInference() error {
	switch c.Inference.Backend {
	case inference.BackendOpenAI:
	case inference.BackendGemini:
		if c.Inference.APIKey == "" {
			return errors.New("inference.api_key is required for the gemini backend. Set GEMINI_API_KEY or CAPTION_API_KEY")
		}
	case inference.BackendExec:
		if strings.TrimSpace(c.Inference.Command) == "" {
			return errors.New("inference.command must be set for the exec backend")
		}
	default:
		return fmt.Errorf("inference.backend must be one of %s, got %q",
			strings.Join(inference.Backends(), ", "), c.Inference.Backend)
	}
	if c.Inference.TimeoutSeconds < 0 {
		return errors.New("inference.timeout_seconds must be >= 0")
	}
	if c.Inference.MaxRetries < 0 {
		return errors.New("inference.max_retries must be >= 0")
	}
	return nil
}

// RunTimeout returns the overall run limit, zero for none.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// InferenceOptions converts the inference section into provider options.
func (c *Config) InferenceOptions() []inference.Option {
	opts := []inference.Option{
		inference.WithTimeout(time.Duration(c.Inference.TimeoutSeconds) * time.Second),
		inference.WithBeamSearchParams(c.Inference.BeamSearchParams),
	}
	if c.Inference.BaseURL != "" {
		opts = append(opts, inference.WithBaseURL(c.Inference.BaseURL))
	}
	if c.Inference.APIKey != "" {
		opts = append(opts, inference.WithAPIKey(c.Inference.APIKey))
	}
	if c.Inference.Model != "" {
		opts = append(opts, inference.WithModel(c.Inference.Model))
	}
	if c.Inference.Command != "" {
		opts = append(opts, inference.WithCommand(c.Inference.Command, c.Inference.Args...))
	}
	if c.Inference.MaxRetries > 0 {
		opts = append(opts, inference.WithRetry(c.Inference.MaxRetries, 500*time.Millisecond))
	}
	return opts
}

// FramePath returns the image the run should caption.
func (c *Config) FramePath() string {
	if c.ImagePath != "" {
		return c.ImagePath
	}
	return c.Camera.Output
}
