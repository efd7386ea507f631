// Package vaultlock provides advisory directory locks backed by flock(2).
//
// A lock is a file inside the guarded directory that records the owning
// process id. The kernel releases the flock when the owner exits, so a lock
// file left behind by a crashed process never blocks a new owner.
package vaultlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// FileName is the lock file created inside a locked directory.
const FileName = "vault.lock"

// ErrLocked reports that another process holds the lock.
var ErrLocked = errors.New("directory is locked by another process")

// Lock is a held directory lock.
type Lock struct {
	path  string
	flock *flock.Flock
}

// Acquire takes the lock for dir without blocking.
func Acquire(dir string) (*Lock, error) {
	path := filepath.Join(dir, FileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("record lock owner: %w", err)
	}
	return &Lock{path: path, flock: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file. Safe on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.flock.Unlock()
	l.flock = nil
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Owner returns the pid recorded in dir's lock file.
func Owner(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse lock owner: %w", err)
	}
	return pid, nil
}

// Remove deletes dir's lock file so a subsequent Acquire creates a fresh one,
// even if another process still holds a lock on the old file.
func Remove(dir string) error {
	err := os.Remove(filepath.Join(dir, FileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock: %w", err)
	}
	return nil
}
