//go:build !unix

package sqlite

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

// fileLock falls back to exclusive creation of the lock file where flock
// is unavailable. A crashed writer leaves the file behind.
type fileLock struct {
	path string
	held bool
}

func (l *fileLock) TryLock(context.Context) (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	l.held = true
	return true, f.Close()
}

func (l *fileLock) Unlock() error {
	if !l.held {
		return nil
	}
	l.held = false
	return os.Remove(l.path)
}
