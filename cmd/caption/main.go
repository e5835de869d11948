// Command caption captures one camera frame and prints a short caption of
// it on stdout.
//
// Usage:
//
//	caption                          # unguided
//	caption "describe the lighting"  # guided by a prompt
//	caption --no-capture --image room.jpg
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-caption/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(defaultDeps()).ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("caption failed", "error", err)
		}
		os.Exit(1)
	}
}
