package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vaultlauncher/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	present := testsupport.WriteScript(t, t.TempDir(), "present", "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %#v", results[2])
	}
}

func TestResolveUsesConfiguredPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	resolved, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Daemon != cfg.Binaries.Daemon {
		t.Fatalf("daemon = %q, want %q", resolved.Daemon, cfg.Binaries.Daemon)
	}
	if resolved.Frontend != cfg.Binaries.Frontend {
		t.Fatalf("frontend = %q, want %q", resolved.Frontend, cfg.Binaries.Frontend)
	}
	if resolved.FFmpeg.FFprobePath != cfg.FFmpeg.FFprobePath {
		t.Fatalf("ffprobe = %q", resolved.FFmpeg.FFprobePath)
	}
}

func TestResolveReportsFirstMissing(t *testing.T) {
	if _, err := os.Stat("/usr/bin/pmvd"); err == nil {
		t.Skip("system pmvd installed")
	}
	t.Setenv("PATH", t.TempDir())

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	cfg.Binaries.Daemon = filepath.Join(t.TempDir(), "pmvd")
	if _, err := Resolve(cfg); !errors.Is(err, ErrDaemonMissing) {
		t.Fatalf("expected ErrDaemonMissing, got %v", err)
	}

	cfg = testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Binaries.Frontend = filepath.Join(t.TempDir(), "missing-www")
	if _, err := os.Stat("/usr/lib/pmv/www"); err == nil {
		t.Skip("system frontend installed")
	}
	if _, err := Resolve(cfg); !errors.Is(err, ErrFrontendMissing) {
		t.Fatalf("expected ErrFrontendMissing, got %v", err)
	}
}

func TestDetectVideoCodec(t *testing.T) {
	dir := t.TempDir()
	listing := `Encoders:
 V..... = Video
 ------
 V....D libopenh264          OpenH264 H.264 / AVC / MPEG-4 AVC
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC
 A....D aac                  AAC (Advanced Audio Coding)`

	both := testsupport.WriteScript(t, dir, "ffmpeg-both", "cat <<'EOF'\n"+listing+"\nEOF")
	codec, err := DetectVideoCodec(context.Background(), both)
	if err != nil || codec != VideoCodecDefault {
		t.Fatalf("DetectVideoCodec = %q, %v", codec, err)
	}

	alt := testsupport.WriteScript(t, dir, "ffmpeg-alt", "echo ' V....D libopenh264   OpenH264'")
	codec, err = DetectVideoCodec(context.Background(), alt)
	if err != nil || codec != VideoCodecAlternative {
		t.Fatalf("DetectVideoCodec = %q, %v", codec, err)
	}
	if CodecAvailable(context.Background(), alt, VideoCodecDefault) {
		t.Fatal("libx264 should not be reported for the alternative-only build")
	}

	none := testsupport.WriteScript(t, dir, "ffmpeg-none", "echo ' A....D aac   AAC'")
	if _, err := DetectVideoCodec(context.Background(), none); !errors.Is(err, ErrNoVideoCodec) {
		t.Fatalf("expected ErrNoVideoCodec, got %v", err)
	}
}
