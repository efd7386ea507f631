package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vaultlauncher/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.SocketPath = filepath.Join(base, "state", "launcher.sock")
	cfgVal.Paths.LauncherConfigDir = filepath.Join(base, "launcher_config")
	cfgVal.Paths.DefaultVault = filepath.Join(base, "vault")
	cfgVal.Binaries.Frontend = filepath.Join(base, "www")
	if err := os.MkdirAll(cfgVal.Binaries.Frontend, 0o755); err != nil {
		t.Fatalf("mkdir frontend: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStubbedBinaries writes stub executables for the provided names and
// points the config at them. If names is empty, pmvd, ffmpeg and ffprobe are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"pmvd", "ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			path := WriteScript(b.t, binDir, name, "exit 0")
			switch name {
			case "pmvd":
				b.cfg.Binaries.Daemon = path
			case "ffmpeg":
				b.cfg.FFmpeg.FFmpegPath = path
			case "ffprobe":
				b.cfg.FFmpeg.FFprobePath = path
			}
		}
	}
}

// WithDaemonScript replaces the daemon binary with a shell script body.
func WithDaemonScript(body string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Binaries.Daemon = WriteScript(b.t, filepath.Join(b.baseDir, "bin"), "pmvd", body)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
