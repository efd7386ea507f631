package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"vaultlauncher/internal/history"
	"vaultlauncher/internal/testsupport"
)

func TestStatusWithoutLauncher(t *testing.T) {
	env := newCLIConfig(t)

	out, _, err := runCLI(t, []string{"status"}, env, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Launcher ==")
	requireContains(t, out, "[INFO] Not running")
	requireContains(t, out, "Vault daemon:")
	requireContains(t, out, "No backups recorded")
}

func TestStatusWithLauncher(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] Running (pid")
	requireContains(t, out, "No vault open")
}

func TestOpenAndCloseVault(t *testing.T) {
	env := setupCLITestEnv(t)
	vault := testsupport.NewVault(t)

	out, _, err := runCLI(t, []string{"open", vault, "--port", "8000"}, env, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	requireContains(t, out, "Vault open: "+vault)

	out, _, err = runCLI(t, []string{"config", "show"}, env, "")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "8000")

	out, _, err = runCLI(t, []string{"close"}, env, "")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	requireContains(t, out, "Vault closed")
}

func TestOpenReportsPendingQuestion(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(t.TempDir(), "new-vault")

	out, _, err := runCLI(t, []string{"open", missing}, env, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	requireContains(t, out, "open --create")
}

func TestBackupHistoryOffline(t *testing.T) {
	env := newCLIConfig(t)
	store, err := history.Open(env.cfg.HistoryDBPath())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	ctx := context.Background()
	id, err := store.Begin(ctx, "/vault", "/backup", history.TriggerScheduled)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := store.Finish(ctx, id, history.Outcome{Status: history.StatusSucceeded, Files: 7, Bytes: 2048}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	store.Close()

	out, _, err := runCLI(t, []string{"backup", "history"}, env, "")
	if err != nil {
		t.Fatalf("backup history: %v", err)
	}
	requireContains(t, out, "succeeded")
	requireContains(t, out, "scheduled")
	requireContains(t, out, "2.0 KiB")
	requireContains(t, out, "/backup")
}

func TestBackupRequiresOpenVault(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"backup", "run", t.TempDir()}, env, ""); err == nil {
		t.Fatal("expected backup without an open vault to fail")
	}
}

func TestCommandsNeedRunningLauncher(t *testing.T) {
	env := newCLIConfig(t)
	_, _, err := runCLI(t, []string{"backup", "cancel"}, env, "")
	if err == nil {
		t.Fatal("expected an error without a launcher")
	}
	requireContains(t, err.Error(), "vaultlauncher start")

	out, _, err := runCLI(t, []string{"stop"}, env, "")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Launcher is not running")
}

func TestConfigSetNeedsAChange(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"config", "set"}, env, ""); err == nil {
		t.Fatal("expected config set without flags to fail")
	}

	out, _, err := runCLI(t, []string{"config", "set", "--theme", "dark"}, env, "")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	requireContains(t, out, "Settings updated")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := newCLIConfig(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, env, ""); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
}

func TestNotifyTestWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"notify", "test"}, env, "")
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "ntfy_topic")
}

func TestCredentialsFromPipedInput(t *testing.T) {
	if _, ok := os.LookupEnv(passwordEnv); ok {
		t.Skipf("%s is set", passwordEnv)
	}
	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader("alice\ns3cret\n"))
	ctx := newCommandContext(nil, nil)

	user, pass, err := credentials(ctx, cmd, "")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if user != "alice" || pass != "s3cret" {
		t.Fatalf("got %q/%q", user, pass)
	}
	if _, _, err := credentials(ctx, cmd, ""); err == nil {
		t.Fatal("expected exhausted input to fail")
	}
}

func TestWrapDialError(t *testing.T) {
	err := wrapDialError(syscall.ECONNREFUSED, "/tmp/x.sock")
	requireContains(t, err.Error(), "refused the connection")
	err = wrapDialError(os.ErrNotExist, "/tmp/x.sock")
	requireContains(t, err.Error(), "not found")
}

func TestLogsShowsTrailingLines(t *testing.T) {
	env := newCLIConfig(t)
	if err := os.WriteFile(env.cfg.LogFilePath(), []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env, "")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out, _, err = runCLI(t, []string{"logs", "--daemon"}, env, "")
	if err != nil {
		t.Fatalf("logs --daemon: %v", err)
	}
	requireContains(t, out, "No daemon logs yet")
}
