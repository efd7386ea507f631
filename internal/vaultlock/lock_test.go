package vaultlock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireRecordsOwner(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	pid, err := Owner(dir)
	if err != nil {
		t.Fatalf("Owner: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("owner pid = %d, want %d", pid, os.Getpid())
	}
	if lock.Path() != filepath.Join(dir, FileName) {
		t.Fatalf("unexpected lock path %q", lock.Path())
	}
}

func TestAcquireContended(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	// flock locks are per open file description, so a second handle in the
	// same process contends like another process would.
	if _, err := Acquire(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err = %v", err)
	}
	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = again.Release()

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Fatalf("nil Release: %v", err)
	}
}

func TestRemoveBreaksHeldLock(t *testing.T) {
	dir := t.TempDir()
	held, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	if err := Remove(dir); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	forced, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after Remove: %v", err)
	}
	_ = forced.Release()

	if err := Remove(t.TempDir()); err != nil {
		t.Fatalf("Remove without lock file: %v", err)
	}
}
