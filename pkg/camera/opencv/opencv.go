// Package opencv registers the "opencv" camera driver, which grabs a frame
// through gocv instead of an ffmpeg subprocess. Importing it requires cgo
// and an OpenCV installation.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-caption/pkg/camera"
)

func init() {
	camera.Register(camera.DriverOpenCV, func(cfg camera.Config, logger *slog.Logger) (camera.Source, error) {
		return New(cfg, logger), nil
	})
}

// Source captures with gocv.VideoCapture.
type Source struct {
	cfg    camera.Config
	logger *slog.Logger
}

// New creates an opencv source.
func New(cfg camera.Config, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, logger: logger}
}

// deviceID converts "0" to an integer index and leaves paths as-is,
// which is what gocv.OpenVideoCapture expects.
func deviceID(device string) interface{} {
	if n, err := strconv.Atoi(device); err == nil {
		return n
	}
	return device
}

// Capture opens the device, discards WarmupFrames, and writes one frame to
// the configured output.
func (s *Source) Capture(ctx context.Context) (string, error) {
	if err := os.Remove(s.cfg.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove stale frame: %w", err)
	}

	vc, err := gocv.OpenVideoCapture(deviceID(s.cfg.Device))
	if err != nil {
		return "", fmt.Errorf("open camera %s: %w", s.cfg.Device, err)
	}
	defer vc.Close()

	if s.cfg.Width > 0 && s.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	}
	vc.Set(gocv.VideoCaptureFPS, float64(s.cfg.Framerate))

	img := gocv.NewMat()
	defer img.Close()

	for i := 0; i <= s.cfg.WarmupFrames; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if ok := vc.Read(&img); !ok {
			return "", fmt.Errorf("%w: read failed on %s", camera.ErrNoFrame, s.cfg.Device)
		}
	}
	if img.Empty() {
		return "", fmt.Errorf("%w: empty frame from %s", camera.ErrNoFrame, s.cfg.Device)
	}

	if ok := gocv.IMWrite(s.cfg.Output, img); !ok {
		return "", fmt.Errorf("%w: write %s", camera.ErrNoFrame, s.cfg.Output)
	}

	s.logger.Debug("frame captured",
		"path", s.cfg.Output,
		"width", img.Cols(),
		"height", img.Rows(),
	)
	return s.cfg.Output, nil
}
