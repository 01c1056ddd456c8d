// Package flock provides advisory file locking built on flock(2).
// It backs the two locking layers of the machine index: the blocking
// whole-index lock that serializes reload/persist sequences, and the
// non-blocking per-machine locks that model checkout of a record.
package flock

import (
	"fmt"
	"os"
	"syscall"
)

// FileLock provides cross-process mutual exclusion using flock(2).
// The lock file is created on first acquisition and left in place after
// release; only its lock state matters, never its content.
type FileLock struct {
	path string
	file *os.File
}

// New creates a FileLock for the given lock file path. Call Lock or
// TryLock to acquire and Unlock to release.
func New(path string) *FileLock {
	return &FileLock{path: path}
}

// Path returns the lock file path.
func (fl *FileLock) Path() string {
	return fl.path
}

// Lock acquires an exclusive file lock, blocking until available.
// The lock file is created if it does not exist.
func (fl *FileLock) Lock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: %w", err)
	}

	fl.file = f
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if it is held elsewhere.
func (fl *FileLock) TryLock() (bool, error) {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if err == syscall.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("flock: %w", err)
	}

	fl.file = f
	return true, nil
}

// Unlock releases the file lock and closes the lock file.
// Calling Unlock on an unheld lock is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return fmt.Errorf("funlock: %w", err)
	}

	err := fl.file.Close()
	fl.file = nil
	return err
}
