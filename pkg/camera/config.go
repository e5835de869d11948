// Package camera acquires a single still frame from a camera and persists it
// to disk for the captioning engine.
package camera

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Driver names.
const (
	DriverFFmpeg = "ffmpeg"
	DriverOpenCV = "opencv"
	DriverFile   = "file"
)

// Config holds camera acquisition settings.
type Config struct {
	// Driver selects the capture backend: "ffmpeg", "opencv" or "file".
	Driver string `toml:"driver" yaml:"driver"`

	// Device is the input device. For ffmpeg this is the -i argument
	// ("0" on avfoundation, "/dev/video0" on v4l2); for opencv an index
	// or a device path.
	Device string `toml:"device" yaml:"device"`

	// Format is the ffmpeg input format. Empty picks the platform default.
	Format string `toml:"format" yaml:"format"`

	// Preset applies a named resolution before explicit Width/Height.
	Preset string `toml:"preset" yaml:"preset"`

	// === Resolution ===
	// Zero width/height keeps the device default.
	Width     int `toml:"width" yaml:"width"`
	Height    int `toml:"height" yaml:"height"`
	Framerate int `toml:"framerate" yaml:"framerate"`

	// Output is where the frame is written. The file driver reads it instead.
	Output string `toml:"output" yaml:"output"`

	FFmpegPath string `toml:"ffmpeg_path" yaml:"ffmpeg_path"`

	// TimeoutSeconds bounds a single capture. 0 means no limit.
	TimeoutSeconds int `toml:"timeout_seconds" yaml:"timeout_seconds"`

	// WarmupFrames are read and discarded before the kept frame so the
	// sensor's auto exposure can settle (opencv only).
	WarmupFrames int `toml:"warmup_frames" yaml:"warmup_frames"`
}

// Limits for validation.
const (
	MaxWidth     = 7680
	MaxHeight    = 4320
	MaxFramerate = 240
	MaxWarmup    = 120
)

// DefaultConfig returns the configuration matching a plain
// "ffmpeg -f <format> -framerate 30 -i <device> -frames:v 1 photo.jpg".
func DefaultConfig() Config {
	return Config{
		Driver:     DriverFFmpeg,
		Device:     DefaultDevice(runtime.GOOS),
		Format:     DefaultFormat(runtime.GOOS),
		Framerate:  30,
		Output:     "photo.jpg",
		FFmpegPath: "ffmpeg",
	}
}

// DefaultFormat returns the ffmpeg capture format for an OS.
func DefaultFormat(goos string) string {
	switch goos {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "v4l2"
	}
}

// DefaultDevice returns the first camera's ffmpeg device name for an OS.
func DefaultDevice(goos string) string {
	switch goos {
	case "darwin":
		return "0"
	case "windows":
		return "video=0"
	default:
		return "/dev/video0"
	}
}

// Timeout returns the capture timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Normalize fills empty fields from defaults and applies the preset.
// Explicit Width/Height win over the preset.
func (c *Config) Normalize() error {
	def := DefaultConfig()

	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = def.Driver
	}
	if strings.TrimSpace(c.Device) == "" {
		c.Device = def.Device
	}
	if strings.TrimSpace(c.Format) == "" {
		c.Format = def.Format
	}
	if strings.TrimSpace(c.Output) == "" {
		c.Output = def.Output
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		c.FFmpegPath = def.FFmpegPath
	}
	if c.Framerate == 0 {
		c.Framerate = def.Framerate
	}

	if c.Preset != "" {
		p, ok := GetPreset(c.Preset)
		if !ok {
			return fmt.Errorf("unknown camera preset %q (available: %s)",
				c.Preset, strings.Join(PresetNames(), ", "))
		}
		if c.Width == 0 && c.Height == 0 {
			c.Width, c.Height = p.Width, p.Height
		}
		if p.Framerate > 0 && c.Framerate == def.Framerate {
			c.Framerate = p.Framerate
		}
	}
	return nil
}

// Validate checks that the config values are usable.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	switch c.Driver {
	case DriverFFmpeg, DriverOpenCV, DriverFile:
	default:
		errors = append(errors, fmt.Sprintf("driver must be %s, %s or %s", DriverFFmpeg, DriverOpenCV, DriverFile))
	}

	if strings.TrimSpace(c.Output) == "" {
		errors = append(errors, "output must be set")
	}

	// Resolution
	if c.Width < 0 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 0 and %d", MaxWidth))
	}
	if c.Height < 0 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 0 and %d", MaxHeight))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errors = append(errors, "width and height must be set together")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}

	if c.TimeoutSeconds < 0 {
		errors = append(errors, "timeout_seconds must be >= 0")
	}
	if c.WarmupFrames < 0 || c.WarmupFrames > MaxWarmup {
		errors = append(errors, fmt.Sprintf("warmup_frames must be between 0 and %d", MaxWarmup))
	}

	if c.Driver == DriverFFmpeg && strings.TrimSpace(c.FFmpegPath) == "" {
		errors = append(errors, "ffmpeg_path must be set for the ffmpeg driver")
	}

	return errors
}
