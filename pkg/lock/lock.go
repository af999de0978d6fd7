// Package lock serializes work on a dependency.
//
// Two primitives are combined: an in-process named lock, so goroutines of
// one run never share a mirror, and an interprocess file lock, so two gilt
// processes never share a mirror either. Acquire takes both, in that order,
// and returns a release function that drops them in reverse.
package lock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/matzehuels/gilt/pkg/errors"
)

// DefaultRetryDelay is how often a contended file lock is retried.
const DefaultRetryDelay = 50 * time.Millisecond

// Locker hands out named locks. The zero value is ready to use.
type Locker struct {
	// RetryDelay is the polling interval for a contended file lock.
	RetryDelay time.Duration

	mu    sync.Mutex
	names map[string]chan struct{}
}

// New creates a Locker.
func New() *Locker {
	return &Locker{RetryDelay: DefaultRetryDelay}
}

// Acquire blocks until it holds the named lock and the file lock at path,
// or ctx is done. The parent directory of path is created when missing.
// The returned release function must be called exactly once.
func (l *Locker) Acquire(ctx context.Context, name, path string) (release func() error, err error) {
	sem := l.semaphore(name)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeLock, ctx.Err(), "acquire %s", name)
	}
	unlockName := func() { <-sem }

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		unlockName()
		return nil, errors.Wrap(errors.ErrCodeLock, err, "create lock directory for %s", name)
	}

	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, l.retryDelay())
	if err != nil || !ok {
		unlockName()
		if err == nil {
			err = ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeLock, err, "lock %s", path)
	}

	var once sync.Once
	return func() error {
		var uerr error
		once.Do(func() {
			uerr = fl.Unlock()
			unlockName()
		})
		if uerr != nil {
			return errors.Wrap(errors.ErrCodeLock, uerr, "unlock %s", path)
		}
		return nil
	}, nil
}

func (l *Locker) semaphore(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.names == nil {
		l.names = make(map[string]chan struct{})
	}
	sem, ok := l.names[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.names[name] = sem
	}
	return sem
}

func (l *Locker) retryDelay() time.Duration {
	if l.RetryDelay > 0 {
		return l.RetryDelay
	}
	return DefaultRetryDelay
}
