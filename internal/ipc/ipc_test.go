package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vaultlauncher/internal/history"
	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/testsupport"
	"vaultlauncher/internal/vaultconfig"
	"vaultlauncher/internal/worker"
)

const initScript = `if [ "$1" = "--init" ]; then printf '{"user":"%s"}' "$PMV_INIT_SET_USER" > "$4/credentials.json"; exit 0; fi
exec sleep 30`

type fakeHistory struct {
	runs []*history.Run
}

func (f *fakeHistory) Begin(context.Context, string, string, history.Trigger) (int64, error) {
	return 0, nil
}

func (f *fakeHistory) Finish(context.Context, int64, history.Outcome) error { return nil }

func (f *fakeHistory) List(_ context.Context, limit int) ([]*history.Run, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type fixture struct {
	client *ipc.Client
	state  *worker.Tracker
}

func startLauncher(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	cfg.FFmpeg.VideoCodec = "libx264"
	cfg.UI.AutoStart = false

	tracker := worker.NewTracker(nil)
	hist := &fakeHistory{runs: []*history.Run{
		{ID: 2, Status: history.StatusFailed, Trigger: history.TriggerScheduled, ErrorKind: "locked"},
		{ID: 1, Status: history.StatusSucceeded, Trigger: history.TriggerManual, Files: 3},
	}}
	w := worker.New(worker.Deps{
		Config:  cfg,
		Sink:    tracker,
		History: hist,
		Logger:  logging.NewNop(),
	})
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	socketDir, err := os.MkdirTemp("", "vlipc")
	if err != nil {
		t.Fatalf("socket dir: %v", err)
	}
	socket := filepath.Join(socketDir, "launcher.sock")
	srv, err := ipc.NewServer(ctx, socket, w, tracker, logging.NewNop(),
		ipc.WithHistory(hist),
		ipc.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		cancel()
		os.RemoveAll(socketDir)
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		w.Send(worker.Finish{})
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("worker did not finish")
		}
		cancel()
		srv.Close()
		os.RemoveAll(socketDir)
	})

	ready, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	if _, err := tracker.Wait(ready, func(s worker.Snapshot) bool { return s.Seq >= 4 }); err != nil {
		t.Fatalf("launcher did not start: %v", err)
	}
	return &fixture{client: client, state: tracker}
}

func TestOpenAnswersQuestionsAndCloses(t *testing.T) {
	f := startLauncher(t, testsupport.WithDaemonScript(initScript))
	vault := filepath.Join(t.TempDir(), "vault")

	partial, err := f.client.Open(ipc.OpenRequest{Path: vault})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if partial.Status != string(worker.StatusCreateAsk) {
		t.Fatalf("expected create question, got %+v", partial)
	}

	resp, err := f.client.Open(ipc.OpenRequest{
		Path:     vault,
		Create:   true,
		Hostname: "localhost",
		Port:     8123,
		Local:    true,
		Username: "admin",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if resp.Status != string(worker.StatusOpen) || resp.Error != nil {
		t.Fatalf("expected open vault, got %+v", resp)
	}

	status, err := f.client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.VaultPath != vault || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Config == nil || status.Config.Port != 8123 || status.Config.CacheSize != vaultconfig.DefaultCacheSize {
		t.Fatalf("unexpected config %+v", status.Config)
	}

	closed, err := f.client.CloseVault()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Status != string(worker.StatusClosed) {
		t.Fatalf("expected closed, got %+v", closed)
	}
}

func TestBackupWaitsForCompletion(t *testing.T) {
	f := startLauncher(t)
	vault := testsupport.NewVault(t)
	if _, err := f.client.Backup(ipc.BackupRequest{Path: t.TempDir()}); err == nil {
		t.Fatal("backup without an open vault should fail")
	}

	resp, err := f.client.Open(ipc.OpenRequest{Path: vault, Hostname: "localhost", Port: 8000, Local: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if resp.Status != string(worker.StatusOpen) {
		t.Fatalf("expected open vault, got %+v", resp)
	}

	dest := filepath.Join(t.TempDir(), "backup")
	backupResp, err := f.client.Backup(ipc.BackupRequest{Path: dest, Wait: true})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if backupResp.Backup.Status != string(worker.TaskSuccess) {
		t.Fatalf("unexpected backup state %+v", backupResp.Backup)
	}
	if backupResp.Backup.Files != int64(len(testsupport.DefaultVaultFiles)) {
		t.Fatalf("unexpected file count %+v", backupResp.Backup)
	}

	cancelResp, err := f.client.CancelBackup()
	if err != nil {
		t.Fatalf("CancelBackup: %v", err)
	}
	if cancelResp.Cancelled {
		t.Fatal("nothing was running to cancel")
	}

	hist, err := f.client.History(1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist.Runs) != 1 || hist.Runs[0].ID != 2 || hist.Runs[0].ErrorKind != "locked" {
		t.Fatalf("unexpected history %+v", hist.Runs)
	}
}

func TestUpdateConfigUserSettings(t *testing.T) {
	f := startLauncher(t)
	locale := "es"
	resp, err := f.client.UpdateConfig(ipc.UpdateConfigRequest{Locale: &locale})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if resp.Locale != "es" {
		t.Fatalf("expected locale es, got %+v", resp)
	}

	bad := "klingon"
	if _, err := f.client.UpdateConfig(ipc.UpdateConfigRequest{Locale: &bad}); err == nil {
		t.Fatal("unsupported locale should be rejected")
	}

	port := 9000
	if _, err := f.client.UpdateConfig(ipc.UpdateConfigRequest{Port: &port}); err == nil {
		t.Fatal("vault settings need an open vault")
	}

	codec := "libx265"
	resp, err = f.client.UpdateConfig(ipc.UpdateConfigRequest{VideoCodec: &codec})
	if err != nil {
		t.Fatalf("UpdateConfig codec: %v", err)
	}
	if resp.Config == nil || resp.Config.VideoCodec != codec {
		t.Fatalf("expected codec %s, got %+v", codec, resp.Config)
	}
}

func TestRequestValidation(t *testing.T) {
	f := startLauncher(t)
	if _, err := f.client.Open(ipc.OpenRequest{}); err == nil {
		t.Fatal("open without a path should fail")
	}
	if _, err := f.client.RecoverKey(ipc.RecoverKeyRequest{Key: "not-hex", Username: "a", Password: "b"}); err == nil {
		t.Fatal("non-hex key should be rejected")
	}
	if _, err := f.client.RunTool(ipc.RunToolRequest{Tool: "defrag"}); err == nil {
		t.Fatal("unknown tool should be rejected")
	}
	if _, err := f.client.Start(false); err == nil {
		t.Fatal("start without an open vault should fail")
	}
	stop, err := f.client.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stop.Daemon.Status != string(worker.DaemonStatusStopped) {
		t.Fatalf("unexpected daemon state %+v", stop.Daemon)
	}
	notify, err := f.client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if notify.Sent {
		t.Fatal("no notifier configured")
	}
}
