package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-caption/internal/config"
	"github.com/teslashibe/go-caption/internal/log"
	"github.com/teslashibe/go-caption/pkg/camera"
	"github.com/teslashibe/go-caption/pkg/caption"
	"github.com/teslashibe/go-caption/pkg/inference"
)

// lockWait bounds how long a run waits for a concurrent run's capture.
const lockWait = 30 * time.Second

// deps are the collaborators run builds. Tests swap them for fixtures.
type deps struct {
	newSource    func(cfg camera.Config, logger *slog.Logger) (camera.Source, error)
	newGenerator func(ctx context.Context, backend string, opts ...inference.Option) (inference.Provider, error)
}

func defaultDeps() deps {
	return deps{
		newSource:    camera.New,
		newGenerator: inference.New,
	}
}

// run captures a frame, captions it and writes the caption to stdout.
// Nothing is written on error.
func run(ctx context.Context, opts options, prompt string, stdout io.Writer, d deps) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.imagePath != "" {
		cfg.ImagePath = opts.imagePath
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log.Init(cfg.LogLevel)
	logger := log.With("run_id", uuid.NewString())

	if t := cfg.RunTimeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	camCfg := cfg.Camera
	capture := !opts.noCapture && cfg.ImagePath == ""
	if !capture {
		camCfg.Driver = camera.DriverFile
		camCfg.Output = cfg.FramePath()
	}

	if capture {
		lockCtx, cancel := context.WithTimeout(ctx, lockWait)
		lock, err := camera.Acquire(lockCtx, camCfg.Output)
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("release capture lock", "error", err)
			}
		}()
	}

	src, err := d.newSource(camCfg, logger)
	if err != nil {
		return err
	}
	path, err := src.Capture(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", caption.ErrNoImage, err)
	}
	logger.Info("frame ready", "path", path, "captured", capture)

	start := time.Now()
	gen, err := d.newGenerator(ctx, cfg.Inference.Backend,
		append(cfg.InferenceOptions(), inference.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.Inference.Backend, err)
	}
	defer gen.Close()
	logger.Debug("generator ready", "backend", gen.Name(), "latency_ms", time.Since(start).Milliseconds())

	engine, err := caption.NewEngine(gen, caption.WithLogger(logger))
	if err != nil {
		return err
	}

	result, err := engine.CaptionFile(ctx, path, prompt)
	if err != nil {
		return err
	}
	logger.Info("caption done",
		"mode", result.Mode.String(),
		"fallback", result.Fallback,
		"latency_ms", result.Latency.Milliseconds(),
	)

	w := bufio.NewWriter(stdout)
	if _, err := w.WriteString(result.Caption); err != nil {
		return err
	}
	return w.Flush()
}
