package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
)

var (
	// ErrNoFrame is returned when a capture finished without producing an
	// image file.
	ErrNoFrame = errors.New("camera: no frame captured")

	// ErrUnknownDriver is returned by New for unregistered driver names.
	ErrUnknownDriver = errors.New("camera: unknown driver")

	// ErrBusy is returned when another process holds the capture lock.
	ErrBusy = errors.New("camera: capture in progress by another process")
)

// Source produces one image file per Capture call and returns its path.
type Source interface {
	Capture(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

// Capture calls f(ctx).
func (f SourceFunc) Capture(ctx context.Context) (string, error) {
	return f(ctx)
}

// Factory builds a Source from a validated config.
type Factory func(cfg Config, logger *slog.Logger) (Source, error)

var (
	driversMu sync.RWMutex
	drivers   = map[string]Factory{
		DriverFFmpeg: func(cfg Config, logger *slog.Logger) (Source, error) {
			return NewFFmpeg(cfg, logger), nil
		},
		DriverFile: func(cfg Config, logger *slog.Logger) (Source, error) {
			return NewFile(cfg.Output), nil
		},
	}
)

// Register makes a driver available to New. Drivers that need cgo
// (opencv) register themselves from their own package's init.
func Register(name string, f Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = f
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New normalizes and validates cfg, then builds the configured driver.
func New(cfg Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid camera config: %v", problems)
	}

	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownDriver, cfg.Driver, Drivers())
	}
	return factory(cfg, logger.With("component", "camera."+cfg.Driver))
}

// File is a Source over an existing image file, for fixtures and
// pre-recorded frames.
type File struct {
	path string
}

// NewFile returns a Source that always yields path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Capture returns the path if the file exists.
func (f *File) Capture(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoFrame, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNoFrame, f.path)
	}
	return f.path, nil
}
