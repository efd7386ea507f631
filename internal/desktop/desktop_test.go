package desktop

import (
	"errors"
	"strings"
	"testing"
)

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"linux", "xdg-open https://localhost:8000"},
		{"freebsd", "xdg-open https://localhost:8000"},
		{"darwin", "open https://localhost:8000"},
		{"windows", "rundll32 url.dll,FileProtocolHandler https://localhost:8000"},
	}
	for _, tt := range tests {
		name, args := OpenCommand(tt.goos, "https://localhost:8000")
		if got := strings.Join(append([]string{name}, args...), " "); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.goos, got, tt.want)
		}
	}
}

func TestSystemOpen(t *testing.T) {
	var got []string
	sys := &System{goos: "linux", start: func(name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}}
	if err := sys.Open("  /tmp/daemon.log "); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if strings.Join(got, " ") != "xdg-open /tmp/daemon.log" {
		t.Fatalf("unexpected command %v", got)
	}
	if err := sys.Open(" "); !errors.Is(err, ErrEmptyTarget) {
		t.Fatalf("expected ErrEmptyTarget, got %v", err)
	}

	sys.start = func(string, ...string) error { return errors.New("no display") }
	if err := sys.Open("x"); err == nil || !strings.Contains(err.Error(), "no display") {
		t.Fatalf("expected wrapped start error, got %v", err)
	}
}

func TestSystemWriteText(t *testing.T) {
	var stored string
	sys := &System{writeAll: func(s string) error { stored = s; return nil }}
	if err := sys.WriteText("ABCDEF"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if stored != "ABCDEF" {
		t.Fatalf("stored %q", stored)
	}
}
