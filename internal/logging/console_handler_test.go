package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsLauncherFields(t *testing.T) {
	var buf bytes.Buffer
	level := &slog.LevelVar{}
	logger := slog.New(newPrettyHandler(&buf, level, false))

	logger.Info("backup finished",
		String(FieldComponent, "worker"),
		Generation(7),
		Int64("bytes", 2048),
		slog.Group("copy", Int64("file_bytes", 1536)),
		Int64("files", 3),
		String("dest", "/mnt/my backup"),
		Error(errors.New("disk full")),
	)

	line := buf.String()
	for _, want := range []string{
		"INFO worker: backup finished",
		"generation=#7",
		"bytes=2.0 KiB",
		"copy.file_bytes=1.5 KiB",
		"files=3",
		`dest="/mnt/my backup"`,
		`"disk full"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as a prefix, got %q", line)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	cases := map[string]string{
		"":         `""`,
		"plain":    "plain",
		"a=b":      `"a=b"`,
		"two word": `"two word"`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q) = %s, want %s", in, got, want)
		}
	}
}
