package logs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vaultlauncher/internal/testsupport"
)

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultlauncher.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\npartial"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if strings.Join(lines, ",") != "b,c" {
		t.Fatalf("unexpected lines %#v", lines)
	}
	if offset != int64(len("a\nb\nc\n")) {
		t.Fatalf("offset should stop before the partial line, got %d", offset)
	}

	lines, _, err = Last(path, 10)
	if err != nil || strings.Join(lines, ",") != "a,b,c" {
		t.Fatalf("short file: %#v %v", lines, err)
	}

	lines, offset, err = Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("missing file: %#v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	pollInterval = 10 * time.Millisecond
	t.Cleanup(func() { pollInterval = 250 * time.Millisecond })

	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	var mu sync.Mutex
	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, offset, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected lines %#v", got)
	}
}

func TestNewestPicksLatestModification(t *testing.T) {
	dir := t.TempDir()
	if path, err := Newest(dir, "*.log"); err != nil || path != "" {
		t.Fatalf("empty dir: %q %v", path, err)
	}
	older := filepath.Join(dir, "2026-01-01-1000-1.log")
	newer := filepath.Join(dir, "2026-01-02-1000-1.log")
	testsupport.WriteFile(t, older, 1)
	testsupport.WriteFile(t, newer, 1)
	testsupport.SetModTime(t, older, time.Now())
	testsupport.SetModTime(t, newer, time.Now().Add(-time.Hour))

	path, err := Newest(dir, "*.log")
	if err != nil {
		t.Fatalf("Newest: %v", err)
	}
	if path != older {
		t.Fatalf("expected %s, got %s", older, path)
	}
}
