package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
	"unicode/utf8"
)

// maxStderrLog bounds how much ffmpeg stderr ends up in the log.
const maxStderrLog = 1000

// FFmpeg captures one frame by shelling out to ffmpeg.
type FFmpeg struct {
	cfg    Config
	logger *slog.Logger
}

// NewFFmpeg creates an ffmpeg source. cfg should already be normalized.
func NewFFmpeg(cfg Config, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{cfg: cfg, logger: logger}
}

// Args returns the ffmpeg arguments for a single-frame capture.
func (f *FFmpeg) Args() []string {
	args := []string{"-y", "-f", f.cfg.Format, "-framerate", strconv.Itoa(f.cfg.Framerate)}
	if f.cfg.Width > 0 && f.cfg.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", f.cfg.Width, f.cfg.Height))
	}
	return append(args, "-i", f.cfg.Device, "-frames:v", "1", f.cfg.Output)
}

// Capture runs ffmpeg and returns the output path.
//
// A non-zero exit is logged, not returned: some capture devices make ffmpeg
// complain while still writing a usable frame. The only failure is the
// absence of the output file, which is removed beforehand so a stale frame
// from an earlier run can never be returned.
func (f *FFmpeg) Capture(ctx context.Context) (string, error) {
	if err := os.Remove(f.cfg.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove stale frame: %w", err)
	}

	if t := f.cfg.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, f.cfg.FFmpegPath, f.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("capture: %w", ctxErr)
		}
		f.logger.Warn("ffmpeg exited with error",
			"error", err,
			"stderr", tail(stderr.String(), maxStderrLog),
		)
	}

	info, err := os.Stat(f.cfg.Output)
	if err != nil || info.Size() == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoFrame, f.cfg.Output)
	}

	f.logger.Debug("frame captured",
		"path", f.cfg.Output,
		"bytes", info.Size(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return f.cfg.Output, nil
}

// tail keeps at most the last maxLen bytes, where ffmpeg prints the actual
// error, starting on a rune boundary.
func tail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := len(s) - maxLen
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
