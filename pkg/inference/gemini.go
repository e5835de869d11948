package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/teslashibe/go-caption/internal/httpc"
	"github.com/teslashibe/go-caption/pkg/caption"
)

const providerGemini = "gemini"

// Gemini captions frames with Google's Gemini API via the genai SDK.
// The API has no beam search, so decoding is greedy (temperature 0, top-k 1,
// one candidate), its deterministic equivalent.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if cfg.Model == "" {
		return nil, WrapError(providerGemini, ErrNoModel)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpc.New(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Name returns the backend name.
func (g *Gemini) Name() string {
	return providerGemini
}

// Generate sends the frame (and the prompt, in guided mode) and returns the
// first candidate's text.
func (g *Gemini) Generate(ctx context.Context, req *caption.Request) (string, error) {
	start := time.Now()

	parts, err := geminiParts(req)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, geminiConfig(req.Decoding))
	if err != nil {
		return "", wrapGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		return "", WrapError(providerGemini, ErrNoOutput)
	}

	g.logger.Debug("caption generated",
		"model", g.config.Model,
		"finish_reason", resp.Candidates[0].FinishReason,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return resp.Text(), nil
}

// Close releases resources. The genai client holds none of its own.
func (g *Gemini) Close() error {
	return nil
}

// geminiParts orders the prompt before the image, matching how the SDK
// examples build multimodal turns. Unguided requests carry the image alone.
func geminiParts(req *caption.Request) ([]*genai.Part, error) {
	if req == nil || req.Image == nil {
		return nil, WrapError(providerGemini, ErrEmptyImage)
	}

	data, err := EncodeJPEG(req.Image)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("encode image: %w", err))
	}

	var parts []*genai.Part
	if req.Guided() {
		parts = append(parts, genai.NewPartFromText(req.Prompt))
	}
	parts = append(parts, genai.NewPartFromBytes(data, "image/jpeg"))
	return parts, nil
}

// geminiConfig maps the decoding settings onto generation config.
func geminiConfig(d caption.Decoding) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(d.MaxNewTokens),
		CandidateCount:  1,
	}
	if !d.DoSample {
		cfg.Temperature = genai.Ptr[float32](0)
		cfg.TopK = genai.Ptr[float32](1)
	}
	return cfg
}

// wrapGeminiError converts SDK errors into APIError so callers can
// classify them, and wraps anything else with provider context.
func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromGeminiAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromGeminiAPIError(*apiErrPtr)
	}
	return WrapError(providerGemini, err)
}

func fromGeminiAPIError(e genai.APIError) *APIError {
	return &APIError{
		StatusCode: e.Code,
		Message:    e.Message,
		Code:       e.Status,
		Provider:   providerGemini,
	}
}
