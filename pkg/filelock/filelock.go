// Package filelock implements the one advisory-lock shape this repo needs:
// exclusive create-or-wait with a bounded retry, explicit release-by-delete.
// A real flock would release on process death instead of file deletion,
// which is the wrong failure mode for a lock file that doubles as the
// on-disk marker other readers check for — so this stays on the standard
// library rather than reaching for a third-party flock package.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	defaultRetryInterval = 20 * time.Millisecond
	defaultMaxWait       = 2 * time.Second
)

// ErrTimeout is returned by Acquire/WithLock when the lock is still held
// after the bounded retry window. Callers that need the liveness-biased
// fallback (write unlocked, or treat a read as empty) check for it with
// errors.Is rather than string-matching the error.
var ErrTimeout = errors.New("filelock: timed out waiting for lock")

// Lock is a held advisory lock backed by an exclusively-created file.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates path exclusively, retrying every defaultRetryInterval until
// defaultMaxWait elapses. If the lock is still held after that, it returns an
// error —
// callers decide whether to proceed unlocked (per spec: writers fall back
// to an unlocked write after bounded retry rather than blocking forever).
func Acquire(path string) (*Lock, error) {
	deadline := time.Now().Add(defaultMaxWait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return &Lock{path: path, file: f}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("filelock: acquire %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		time.Sleep(defaultRetryInterval)
	}
}

// Release closes and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.file.Close()
	return os.Remove(l.path)
}

// WithLock acquires path, runs fn, and always releases — even if fn panics
// or returns an error.
func WithLock(path string, fn func() error) error {
	lock, err := Acquire(path)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}
