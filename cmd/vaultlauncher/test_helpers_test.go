package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/testsupport"
	"vaultlauncher/internal/worker"
)

type cliTestEnv struct {
	cfg        *config.Config
	socketPath string
	configPath string
}

// newCLIConfig writes a config file whose socket lives in a short temp
// directory; t.TempDir paths can exceed the unix socket path limit.
func newCLIConfig(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.FFmpeg.VideoCodec = "libx264"
	cfg.UI.AutoStart = false

	socketDir, err := os.MkdirTemp("", "vlcli")
	if err != nil {
		t.Fatalf("socket dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(socketDir) })
	cfg.Paths.SocketPath = filepath.Join(socketDir, "launcher.sock")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return &cliTestEnv{cfg: cfg, socketPath: cfg.Paths.SocketPath, configPath: configPath}
}

// setupCLITestEnv serves a launcher in-process on the env's socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := newCLIConfig(t)

	store, err := history.Open(env.cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	tracker := worker.NewTracker(nil)
	w := worker.New(worker.Deps{
		Config:     env.cfg,
		ConfigPath: env.configPath,
		Sink:       tracker,
		History:    store,
		Logger:     logging.NewNop(),
	})
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, env.socketPath, w, tracker, logging.NewNop(),
		ipc.WithHistory(store),
		ipc.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		cancel()
		w.Send(worker.Finish{})
		<-done
		store.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		w.Send(worker.Finish{})
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("worker did not finish")
		}
		cancel()
		srv.Close()
		store.Close()
	})

	ready, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if _, err := tracker.Wait(ready, func(s worker.Snapshot) bool { return s.Seq >= 4 }); err != nil {
		t.Fatalf("launcher did not start: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, env *cliTestEnv, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	flags := []string{"--socket", env.socketPath}
	if env.configPath != "" {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
