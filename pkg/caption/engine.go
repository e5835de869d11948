package caption

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Engine runs the captioning pipeline against one Generator.
// It is not safe for concurrent use; a process runs one caption at a time.
type Engine struct {
	gen    Generator
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine that owns gen for the rest of the run.
func NewEngine(gen Generator, opts ...Option) (*Engine, error) {
	if gen == nil {
		return nil, ErrNoGenerator
	}
	e := &Engine{
		gen:    gen,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "caption.engine")
	return e, nil
}

// CaptionFile loads the frame at path and captions it. A missing or
// undecodable file returns ErrNoImage without calling the generator.
func (e *Engine) CaptionFile(ctx context.Context, path, prompt string) (*Result, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("image loaded",
		"path", path,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return e.Caption(ctx, NewRequest(img, prompt))
}

// Caption makes exactly one generator call for req and applies the
// fallback policy to the decoded text. The caller's request is not
// modified; decoding settings are always the fixed ones.
func (e *Engine) Caption(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Image == nil || req.Image.Bounds().Empty() {
		return nil, ErrNoImage
	}

	sent := *req
	sent.Decoding = fixedDecoding()
	mode := sent.Mode()

	e.logger.Debug("running inference",
		"mode", mode.String(),
		"max_new_tokens", sent.Decoding.MaxNewTokens,
		"num_beams", sent.Decoding.NumBeams,
	)

	start := time.Now()
	raw, err := e.gen.Generate(ctx, &sent)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	decoded := Clean(raw)
	text, fallback := ApplyFallback(decoded)
	if fallback {
		e.logger.Info("decoded caption too short, using fallback",
			"decoded", decoded,
			"min_length", MinCaptionLength,
		)
	}

	return &Result{
		Caption:  text,
		Decoded:  decoded,
		Fallback: fallback,
		Mode:     mode,
		Latency:  latency,
	}, nil
}
