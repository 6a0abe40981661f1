//go:build unix

package sqlite

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an exclusive flock on the lock file. The lock belongs to the
// open file, so two handles in one process exclude each other too.
type fileLock struct {
	path string
	f    *os.File
}

func (l *fileLock) TryLock(context.Context) (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return false, nil
		}
		return false, err
	}
	l.f = f
	return true, nil
}

func (l *fileLock) Unlock() error {
	if l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
