package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often Acquire polls a held lock.
const lockRetryDelay = 100 * time.Millisecond

// Lock is an exclusive advisory lock on "<output>.lock" held for the
// capture and caption span of one run.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the lock for output, waiting until ctx is done.
// Returns ErrBusy if the lock is still held when ctx expires.
func Acquire(ctx context.Context, output string) (*Lock, error) {
	fl := flock.New(output + ".lock")

	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s", ErrBusy, fl.Path())
		}
		return nil, fmt.Errorf("acquire capture lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBusy, fl.Path())
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Release unlocks. The lock file itself is left in place.
func (l *Lock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release capture lock: %w", err)
	}
	return nil
}
