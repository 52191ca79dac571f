// Package lockfile provides advisory exclusive file locks with a bounded
// acquisition wait. Every mutation of shared state directories (handoff
// queue, agent bindings) is wrapped in an Acquire/Release pair.
package lockfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// retryInterval is how often a blocked Acquire re-attempts the lock.
const retryInterval = 100 * time.Millisecond

// TimeoutError indicates the lock could not be acquired within the budget.
type TimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("lock acquisition timed out after %s: %s", e.Timeout, e.Path)
}

// Handle represents a held lock. Release is idempotent.
type Handle struct {
	fl       *flock.Flock
	released bool
}

// Acquire takes an exclusive advisory lock on path, polling every 100ms up
// to timeout. The lockfile and its parent directory are created as needed.
func Acquire(path string, timeout time.Duration) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(path)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, retryInterval)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", path, err)
	}
	if !locked {
		return nil, &TimeoutError{Path: path, Timeout: timeout}
	}
	return &Handle{fl: fl}, nil
}

// Release drops the lock. Safe to call more than once.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	_ = h.fl.Unlock()
}
