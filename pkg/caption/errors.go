package caption

import "errors"

// Sentinel errors. Both are fatal for a run; neither is ever masked by
// FallbackCaption.
var (
	// ErrNoImage is returned when the frame is missing, empty or undecodable.
	ErrNoImage = errors.New("caption: no image available")

	// ErrGeneration is returned when the generator call fails.
	ErrGeneration = errors.New("caption: generation failed")

	// ErrNoGenerator is returned by NewEngine when no generator is given.
	ErrNoGenerator = errors.New("caption: generator required")
)
