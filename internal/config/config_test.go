package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-caption/internal/config"
	"github.com/teslashibe/go-caption/pkg/inference"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CAPTION_BACKEND", "CAPTION_MODEL", "CAPTION_BASE_URL", "CAPTION_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Inference.Backend != inference.BackendOpenAI {
		t.Fatalf("expected openai backend, got %q", cfg.Inference.Backend)
	}
	if cfg.Camera.Output != "photo.jpg" {
		t.Fatalf("expected photo.jpg output, got %q", cfg.Camera.Output)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected error log level, got %q", cfg.LogLevel)
	}
	if cfg.RunTimeout() != 0 {
		t.Fatalf("expected no run timeout by default, got %v", cfg.RunTimeout())
	}
	if cfg.FramePath() != "photo.jpg" {
		t.Fatalf("expected frame path to follow camera output, got %q", cfg.FramePath())
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "caption.toml", `
log_level = "debug"
timeout = 90

[camera]
driver = "ffmpeg"
device = "/dev/video2"
preset = "720p"
output = "/tmp/frame.jpg"

[inference]
backend = "exec"
command = "/bin/true"
args = ["--device", "cpu"]
timeout_seconds = 30
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.RunTimeout() != 90*time.Second {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.Camera.Device != "/dev/video2" || cfg.Camera.Width != 1280 || cfg.Camera.Height != 720 {
		t.Fatalf("unexpected camera config: %+v", cfg.Camera)
	}
	if cfg.Inference.Backend != inference.BackendExec || len(cfg.Inference.Args) != 2 {
		t.Fatalf("unexpected inference config: %+v", cfg.Inference)
	}
	if cfg.Inference.Model != "" {
		t.Fatalf("expected model to be left to the backend, got %q", cfg.Inference.Model)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "caption.yaml", `
image_path: fixtures/room.png
camera:
  driver: file
inference:
  backend: openai
  base_url: http://localhost:8000/v1
  model: Salesforce/blip-image-captioning-base
  max_retries: 2
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.FramePath() != "fixtures/room.png" {
		t.Fatalf("expected image_path to win, got %q", cfg.FramePath())
	}
	if cfg.Camera.Driver != "file" {
		t.Fatalf("expected file driver, got %q", cfg.Camera.Driver)
	}
	if cfg.Inference.BaseURL != "http://localhost:8000/v1" || cfg.Inference.MaxRetries != 2 {
		t.Fatalf("unexpected inference config: %+v", cfg.Inference)
	}
	if !cfg.Inference.BeamSearchParams {
		t.Fatal("expected beam search params to keep their default")
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	clearEnv(t)
	if _, err := config.Load(writeConfig(t, "empty.yml", "")); err != nil {
		t.Fatalf("expected empty YAML to load defaults, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unknown extension", "caption.json", `{}`, "unsupported config format"},
		{"unknown toml key", "caption.toml", "num_beams = 5\n", "parse config"},
		{"unknown yaml key", "caption.yaml", "max_new_tokens: 80\n", "parse config"},
		{"bad backend", "caption.toml", "[inference]\nbackend = \"onnx\"\n", "inference.backend"},
		{"exec without command", "caption.toml", "[inference]\nbackend = \"exec\"\n", "inference.command"},
		{"gemini without key", "caption.toml", "[inference]\nbackend = \"gemini\"\n", "api_key"},
		{"bad log level", "caption.toml", "log_level = \"trace\"\n", "log_level"},
		{"negative timeout", "caption.toml", "timeout = -1\n", "timeout"},
		{"bad camera", "caption.toml", "[camera]\ndriver = \"v4l\"\n", "camera"},
		{"bad preset", "caption.toml", "[camera]\npreset = \"8k\"\n", "preset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.file, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTION_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("CAPTION_MODEL", "gemini-2.5-flash")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Inference.Backend != inference.BackendGemini {
		t.Fatalf("expected gemini backend from env, got %q", cfg.Inference.Backend)
	}
	if cfg.Inference.APIKey != "gemini-key" {
		t.Fatalf("expected GEMINI_API_KEY, got %q", cfg.Inference.APIKey)
	}
	if cfg.Inference.Model != "gemini-2.5-flash" {
		t.Fatalf("expected model from env, got %q", cfg.Inference.Model)
	}
}

func TestEnvAPIKeyPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("CAPTION_API_KEY", "caption-key")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Inference.APIKey != "caption-key" {
		t.Fatalf("expected CAPTION_API_KEY to win, got %q", cfg.Inference.APIKey)
	}

	path := writeConfig(t, "caption.toml", "[inference]\napi_key = \"file-key\"\n")
	cfg, err = config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Inference.APIKey != "file-key" {
		t.Fatalf("expected file key to win over env, got %q", cfg.Inference.APIKey)
	}
}

func TestInferenceOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Inference.BaseURL = "http://localhost:8000/v1"
	cfg.Inference.Model = "llava"
	cfg.Inference.MaxRetries = 1

	ic := inference.DefaultConfig()
	ic.Apply(cfg.InferenceOptions()...)

	if ic.BaseURL != "http://localhost:8000/v1" || ic.Model != "llava" {
		t.Fatalf("unexpected inference config: %+v", ic)
	}
	if ic.Timeout != 120*time.Second {
		t.Fatalf("expected 120s timeout, got %v", ic.Timeout)
	}
	if ic.MaxRetries != 1 {
		t.Fatalf("expected 1 retry, got %d", ic.MaxRetries)
	}
}
