// Package inference provides the captioning backends behind caption.Generator.
//
// Every backend maps the fixed caption.Decoding settings onto its own
// transport and returns the raw decoded text, leaving cleanup and the
// fallback policy to the caption package. Supported backends:
//
//   - openai: any OpenAI-compatible chat completions server (vLLM, Ollama,
//     llama.cpp server, OpenAI)
//   - gemini: Google's Gemini API through the genai SDK
//   - exec:   a local captioning executable (e.g. a BLIP helper script)
//
// Example usage:
//
//	provider, _ := inference.New(ctx, inference.BackendOpenAI,
//	    inference.WithBaseURL("http://localhost:11434/v1"),
//	    inference.WithModel("llava"),
//	)
//	defer provider.Close()
//
//	engine, _ := caption.NewEngine(provider)
//	res, _ := engine.CaptionFile(ctx, "photo.jpg", "")
package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-caption/pkg/caption"
)

// Backend names accepted by New.
const (
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendExec   = "exec"
)

// Provider is a captioning model acquired once per run.
type Provider interface {
	caption.Generator

	// Name identifies the backend in logs and errors.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// New constructs the named backend. Construction failures (missing key,
// missing executable) are initialization failures and fatal for the run.
func New(ctx context.Context, backend string, opts ...Option) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendOpenAI, "":
		return NewClient(opts...)
	case BackendGemini:
		return NewGemini(ctx, opts...)
	case BackendExec:
		return NewExec(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Backends lists the names accepted by New.
func Backends() []string {
	return []string{BackendOpenAI, BackendGemini, BackendExec}
}

// Verify providers implement Provider at compile time.
var (
	_ Provider = (*Client)(nil)
	_ Provider = (*Gemini)(nil)
	_ Provider = (*Exec)(nil)
	_ Provider = (*Mock)(nil)
)
