// Package lock provides an exclusive file lock shared by processes syncing the same index.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var errWouldBlock = errors.New("would block")

var (
	// ErrLocked indicates another holder owns the lock.
	ErrLocked = errors.New("lock: held by another process")
	// ErrNotHeld indicates Unlock was called without holding the lock.
	ErrNotHeld = errors.New("lock: not held")
)

const defaultPollInterval = 50 * time.Millisecond

// File is an exclusive advisory lock on a file path.
type File struct {
	path string
	poll time.Duration
	mu   sync.Mutex
	f    *os.File
}

// New returns a lock for path; the file is created on first use.
func New(path string) *File {
	return &File{path: path, poll: defaultPollInterval}
}

// Path returns the lock file path.
func (l *File) Path() string { return l.path }

// TryLock acquires the lock or returns ErrLocked without waiting.
func (l *File) TryLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f != nil {
		return ErrLocked
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	if err := tryLockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, errWouldBlock) {
			return ErrLocked
		}
		return fmt.Errorf("lock: %s: %w", l.path, err)
	}
	l.f = f
	return nil
}

// Lock polls until the lock is acquired or ctx is done.
func (l *File) Lock(ctx context.Context) error {
	for {
		err := l.TryLock()
		if !errors.Is(err, ErrLocked) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}
}

// Unlock releases the lock.
func (l *File) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return ErrNotHeld
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
