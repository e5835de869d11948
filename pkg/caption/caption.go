// Package caption turns a single camera frame into a short description.
//
// An Engine makes exactly one call to a Generator under fixed beam-search
// settings, strips tokenizer control tokens from the decoded text and
// substitutes FallbackCaption when what is left is too short to be useful.
//
// Example usage:
//
//	engine, _ := caption.NewEngine(generator)
//
//	// Unguided
//	res, err := engine.CaptionFile(ctx, "photo.jpg", "")
//
//	// Guided (the prompt is a hint the model may ignore)
//	res, err = engine.CaptionFile(ctx, "photo.jpg", "describe the lighting")
package caption

import (
	"context"
	"image"
	"time"
)

// Decoding settings applied to every generation. They are not configurable.
const (
	MaxNewTokens = 40
	NumBeams     = 3
	DoSample     = false
)

// MinCaptionLength is the shortest decoded caption, in characters, that is
// emitted as-is. Anything shorter is replaced by FallbackCaption.
const MinCaptionLength = 5

// FallbackCaption replaces empty or degenerate model output.
const FallbackCaption = "I can see a person, but the details are unclear."

// Mode is the shape of a generation request.
type Mode int

const (
	// ModeUnguided sends only the image.
	ModeUnguided Mode = iota

	// ModeGuided sends the image together with a steering prompt.
	ModeGuided
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	if m == ModeGuided {
		return "guided"
	}
	return "unguided"
}

// Decoding describes how the generator must search for the output sequence.
type Decoding struct {
	// MaxNewTokens caps the number of generated tokens.
	MaxNewTokens int

	// NumBeams is the beam width.
	NumBeams int

	// DoSample enables stochastic sampling. Always false.
	DoSample bool
}

func fixedDecoding() Decoding {
	return Decoding{
		MaxNewTokens: MaxNewTokens,
		NumBeams:     NumBeams,
		DoSample:     DoSample,
	}
}

// Request is what a Generator receives: the RGB frame, the optional prompt
// and the decoding settings.
type Request struct {
	// Image is the normalized RGB frame (alpha is always opaque).
	Image *image.RGBA

	// Prompt steers the caption. Empty in unguided mode.
	Prompt string

	// Decoding is stamped by the Engine before every call.
	Decoding Decoding
}

// Mode reports whether the request is guided.
func (r *Request) Mode() Mode {
	if r.Prompt != "" {
		return ModeGuided
	}
	return ModeUnguided
}

// Guided is shorthand for r.Mode() == ModeGuided.
func (r *Request) Guided() bool {
	return r.Mode() == ModeGuided
}

// Generator is the captioning model. Generate returns the raw decoded text
// for req; it must not retry or post-process it.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req *Request) (string, error)

// Generate calls f(ctx, req).
func (f GeneratorFunc) Generate(ctx context.Context, req *Request) (string, error) {
	return f(ctx, req)
}

// Result is the outcome of one captioning run.
type Result struct {
	// Caption is the text to emit. Never shorter than MinCaptionLength.
	Caption string

	// Decoded is the model output after token stripping and trimming,
	// before the fallback check.
	Decoded string

	// Fallback is true when Caption is FallbackCaption because Decoded
	// was too short.
	Fallback bool

	// Mode is the request shape that was sent.
	Mode Mode

	// Latency is the time spent inside the generator.
	Latency time.Duration
}
