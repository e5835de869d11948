package inference

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/go-caption/pkg/caption"
)

const providerExec = "exec"

// maxStderrLog bounds how much helper stderr is copied into logs and errors.
const maxStderrLog = 500

// Exec runs a local captioning executable once per request. The helper is
// called as
//
//	<command> <args...> --image <png> --max-new-tokens N --num-beams N
//	    [--no-sample] [--model M] [--prompt TEXT]
//
// and must print the decoded caption on stdout.
type Exec struct {
	command string
	args    []string
	config  *Config
	logger  *slog.Logger
}

// NewExec creates an exec provider. The executable is resolved up front so
// a missing helper fails at initialization, not mid-run.
func NewExec(opts ...Option) (*Exec, error) {
	cfg := DefaultConfig()
	cfg.Model = ""
	cfg.Apply(opts...)

	if cfg.Command == "" {
		return nil, WrapError(providerExec, ErrNoCommand)
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		return nil, WrapError(providerExec, fmt.Errorf("resolve %s: %w", cfg.Command, err))
	}

	return &Exec{
		command: path,
		args:    slices.Clone(cfg.Args),
		config:  cfg,
		logger:  cfg.Logger.With("component", "inference.exec"),
	}, nil
}

// Name returns the backend name.
func (e *Exec) Name() string {
	return providerExec
}

// Generate writes the frame to a temporary PNG, runs the helper and returns
// its stdout.
func (e *Exec) Generate(ctx context.Context, req *caption.Request) (string, error) {
	if req == nil || req.Image == nil {
		return "", WrapError(providerExec, ErrEmptyImage)
	}

	imagePath, err := writeTempPNG(req)
	if err != nil {
		return "", WrapError(providerExec, err)
	}
	defer os.Remove(imagePath)

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.command, e.buildArgs(imagePath, req)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", WrapError(providerExec, fmt.Errorf("run %s: %w: %s",
			e.command, err, truncate(stderr.String(), maxStderrLog)))
	}

	if stderr.Len() > 0 {
		e.logger.Debug("captioner stderr", "output", truncate(stderr.String(), maxStderrLog))
	}
	e.logger.Debug("caption generated",
		"command", e.command,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return stdout.String(), nil
}

// Close releases resources.
func (e *Exec) Close() error {
	return nil
}

// buildArgs appends the per-request flags to the configured arguments.
func (e *Exec) buildArgs(imagePath string, req *caption.Request) []string {
	args := slices.Clone(e.args)
	args = append(args,
		"--image", imagePath,
		"--max-new-tokens", strconv.Itoa(req.Decoding.MaxNewTokens),
		"--num-beams", strconv.Itoa(req.Decoding.NumBeams),
	)
	if !req.Decoding.DoSample {
		args = append(args, "--no-sample")
	}
	if e.config.Model != "" {
		args = append(args, "--model", e.config.Model)
	}
	if req.Guided() {
		args = append(args, "--prompt", req.Prompt)
	}
	return args
}

// writeTempPNG stores the normalized frame losslessly for the helper.
func writeTempPNG(req *caption.Request) (string, error) {
	f, err := os.CreateTemp("", "caption-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}

	if err := png.Encode(f, req.Image); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("encode temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp image: %w", err)
	}
	return f.Name(), nil
}

// truncate shortens a string to at most maxLen bytes without splitting a
// UTF-8 sequence.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
