package worker

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"vaultlauncher/internal/backup"
	"vaultlauncher/internal/config"
	"vaultlauncher/internal/credentials"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/supervisor"
	"vaultlauncher/internal/testsupport"
	"vaultlauncher/internal/vaultconfig"
	"vaultlauncher/internal/vaultcrypto"
	"vaultlauncher/internal/vaultlock"
)

const waitTimeout = 10 * time.Second

type fakeOpener struct {
	mu     sync.Mutex
	opened []string
}

func (f *fakeOpener) Open(target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, target)
	return nil
}

func (f *fakeOpener) targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

type fakeHistory struct {
	mu       sync.Mutex
	begun    []history.Trigger
	outcomes []history.Outcome
}

func (f *fakeHistory) Begin(_ context.Context, _, _ string, trigger history.Trigger) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begun = append(f.begun, trigger)
	return int64(len(f.begun)), nil
}

func (f *fakeHistory) Finish(_ context.Context, _ int64, outcome history.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

type harness struct {
	t       *testing.T
	cfg     *config.Config
	worker  *Worker
	tracker *Tracker
	opener  *fakeOpener
	history *fakeHistory
	done    chan error
	once    sync.Once
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	cfg.FFmpeg.VideoCodec = "libx264"
	cfg.UI.AutoStart = false
	return startHarness(t, cfg)
}

func startHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		cfg:     cfg,
		tracker: NewTracker(nil),
		opener:  &fakeOpener{},
		history: &fakeHistory{},
		done:    make(chan error, 1),
	}
	h.worker = New(Deps{
		Config:     cfg,
		ConfigPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
		Sink:       h.tracker,
		Opener:     h.opener,
		History:    h.history,
	}, WithSupervisorOptions(
		supervisor.WithPollInterval(10*time.Millisecond),
		supervisor.WithGraceTimeout(time.Second),
	))
	go func() { h.done <- h.worker.Run(context.Background()) }()
	t.Cleanup(h.finish)
	return h
}

func (h *harness) finish() {
	h.once.Do(func() {
		h.worker.Send(Finish{})
		select {
		case <-h.done:
		case <-time.After(waitTimeout):
			h.t.Fatal("worker did not finish")
		}
	})
}

// ready waits for the four events a successful startup publishes.
func (h *harness) ready() Snapshot {
	h.t.Helper()
	return h.wait("startup", func(s Snapshot) bool { return s.Seq >= 4 })
}

func (h *harness) wait(what string, ready func(Snapshot) bool) Snapshot {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	snap, err := h.tracker.Wait(ctx, ready)
	if err != nil {
		h.t.Fatalf("timed out waiting for %s; last snapshot %+v", what, snap)
	}
	return snap
}

func (h *harness) waitLauncher(status LauncherStatus) Snapshot {
	h.t.Helper()
	return h.wait(string(status), func(s Snapshot) bool { return s.Launcher == status })
}

// configureVault writes a launcher config for vault so opening it skips the
// initial configuration step.
func (h *harness) configureVault(vault string, port int) {
	h.t.Helper()
	path := vaultconfig.Resolve(h.cfg.Paths.LauncherConfigDir, vault)
	cfg := vaultconfig.New()
	cfg.Hostname = "localhost"
	cfg.Port = port
	cfg.Local = true
	if err := vaultconfig.Save(path, cfg); err != nil {
		h.t.Fatalf("save launcher config: %v", err)
	}
}

func (h *harness) openVault(vault string) {
	h.t.Helper()
	h.worker.Send(OpenVault{Path: vault})
	h.waitLauncher(StatusOpen)
}

func healthServer(t *testing.T) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	_, portText, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("split server address: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return port
}

func TestFatalErrorWhenDaemonMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("ffmpeg", "ffprobe"))
	cfg.Binaries.Daemon = filepath.Join(t.TempDir(), "missing", "pmvd")
	cfg.FFmpeg.VideoCodec = "libx264"
	h := startHarness(t, cfg)

	snap := h.waitLauncher(StatusFatalError)
	if snap.Fatal.Kind != FatalDaemonMissing {
		t.Fatalf("expected daemon missing, got %+v", snap.Fatal)
	}

	seq := h.tracker.Snapshot().Seq
	h.worker.Send(OpenVault{Path: testsupport.NewVault(t)})
	h.finish()
	if got := h.tracker.Snapshot(); got.Seq != seq || got.Launcher != StatusFatalError {
		t.Fatalf("messages after a fatal error must be ignored, snapshot %+v", got)
	}
}

func TestOpenMissingFolderCreatesAndInitialises(t *testing.T) {
	script := `if [ "$1" = "--init" ]; then printf '{"user":"%s"}' "$PMV_INIT_SET_USER" > "$4/credentials.json"; exit 0; fi
exec sleep 30`
	h := newHarness(t, testsupport.WithDaemonScript(script))
	vault := filepath.Join(t.TempDir(), "new-vault")

	h.worker.Send(OpenVault{Path: vault})
	h.waitLauncher(StatusCreateAsk)

	h.worker.Send(CreateFolderAndOpen{})
	snap := h.waitLauncher(StatusInitialConfig)
	if snap.Config.Launcher.Port != vaultconfig.DefaultPort || !snap.Config.Launcher.Local {
		t.Fatalf("initial config should offer defaults, got %+v", snap.Config.Launcher)
	}
	if _, err := os.Stat(filepath.Join(vault, vaultlock.FileName)); err != nil {
		t.Fatalf("vault lock not taken: %v", err)
	}

	h.worker.Send(SetInitialConfig{Hostname: "vault.lan", Port: 8123, Local: false})
	h.waitLauncher(StatusCreateVaultAsk)
	saved, err := vaultconfig.Load(vaultconfig.Resolve(h.cfg.Paths.LauncherConfigDir, vault))
	if err != nil || saved.Port != 8123 || saved.Hostname != "vault.lan" {
		t.Fatalf("initial config not saved: %+v, %v", saved, err)
	}

	h.worker.Send(CreateVault{Username: "admin", Password: "secret"})
	h.waitLauncher(StatusOpen)
	data, err := os.ReadFile(filepath.Join(vault, credentials.FileName))
	if err != nil || !strings.Contains(string(data), `"admin"`) {
		t.Fatalf("init did not receive credentials: %q, %v", data, err)
	}

	h.worker.Send(CloseVault{})
	h.waitLauncher(StatusClosed)
	if _, err := os.Stat(filepath.Join(vault, vaultlock.FileName)); !os.IsNotExist(err) {
		t.Fatalf("vault lock should be released on close, stat err %v", err)
	}
}

func TestCreateVaultFailureReportsInitError(t *testing.T) {
	h := newHarness(t, testsupport.WithDaemonScript(`echo "2024 [ERROR] disk full"; exit 1`))
	vault := testsupport.NewVault(t, testsupport.VaultFile{Path: "main.index", Size: 8})
	h.configureVault(vault, 8000)

	h.worker.Send(OpenVault{Path: vault})
	h.waitLauncher(StatusCreateVaultAsk)
	h.worker.Send(CreateVault{Username: "admin", Password: "secret"})
	snap := h.waitLauncher(StatusOpenError)
	if snap.OpenError.Kind != OpenErrorInit || snap.OpenError.Detail != "disk full" {
		t.Fatalf("unexpected open error %+v", snap.OpenError)
	}
}

func TestLockedVaultAsksThenForceOpens(t *testing.T) {
	h := newHarness(t)
	vault := testsupport.NewVault(t)
	held, err := vaultlock.Acquire(vault)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(func() { _ = held.Release() })

	h.worker.Send(OpenVault{Path: vault})
	h.waitLauncher(StatusLockAsk)

	h.worker.Send(ForceOpenVault{})
	h.waitLauncher(StatusInitialConfig)
}

func TestDaemonStartsOpensBrowserAndStops(t *testing.T) {
	port := healthServer(t)
	h := newHarness(t, testsupport.WithDaemonScript("exec sleep 30"))
	vault := testsupport.NewVault(t)
	h.configureVault(vault, port)
	h.openVault(vault)

	h.worker.Send(StartVault{OpenBrowser: true})
	snap := h.wait("daemon running", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusRunning })
	wantURL := "http://localhost:" + strconv.Itoa(port)
	if snap.Daemon.URL != wantURL {
		t.Fatalf("url = %q, want %q", snap.Daemon.URL, wantURL)
	}
	if snap.Daemon.LogFile == "" || !strings.HasPrefix(snap.Daemon.LogFile, h.cfg.DaemonLogDir()) {
		t.Fatalf("log file %q not under %s", snap.Daemon.LogFile, h.cfg.DaemonLogDir())
	}

	h.worker.Send(StopVault{})
	h.wait("daemon stopped", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusStopped })

	// The browser is opened by the loop right after the running report.
	if got := h.opener.targets(); len(got) != 1 || got[0] != wantURL {
		t.Fatalf("opened %v, want [%s]", got, wantURL)
	}
}

func TestDaemonStartWithoutBrowser(t *testing.T) {
	port := healthServer(t)
	h := newHarness(t, testsupport.WithDaemonScript("exec sleep 30"))
	vault := testsupport.NewVault(t)
	h.configureVault(vault, port)
	h.openVault(vault)

	h.worker.Send(StartVault{})
	h.wait("daemon running", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusRunning })
	h.worker.Send(StopVault{})
	h.wait("daemon stopped", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusStopped })

	if got := h.opener.targets(); len(got) != 0 {
		t.Fatalf("opened %v, want nothing", got)
	}
}

func TestDaemonExitCodeMapsToErrorKind(t *testing.T) {
	h := newHarness(t, testsupport.WithDaemonScript("exit 5"))
	vault := testsupport.NewVault(t)
	h.configureVault(vault, 1)
	h.openVault(vault)

	h.worker.Send(StartVault{})
	snap := h.wait("daemon error", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusError })
	if snap.Daemon.ErrKind != supervisor.KindPortInUse {
		t.Fatalf("kind = %s, want %s", snap.Daemon.ErrKind, supervisor.KindPortInUse)
	}
}

func TestStaleCompletionsAreIgnored(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	tracker := NewTracker(nil)
	w := New(Deps{Config: cfg, Sink: tracker})

	for _, msg := range []Message{
		DaemonStarted{Generation: 42, OpenBrowser: true},
		DaemonStartError{Generation: 43, Err: supervisor.ExitErrorFromCode(4)},
		DaemonStopped{Generation: 44},
		ToolSuccess{ToolID: 7},
		ToolError{ToolID: 8, Detail: "boom"},
		BackupEnded{TaskID: 9, Err: backup.ErrCancelled},
	} {
		w.dispatch(msg)
	}
	if seq := tracker.Snapshot().Seq; seq != 0 {
		t.Fatalf("stale completions published %d events", seq)
	}
}

func TestBackupRunsAndRecordsHistory(t *testing.T) {
	h := newHarness(t)
	vault := testsupport.NewVault(t)
	h.configureVault(vault, 8000)
	h.openVault(vault)
	dest := filepath.Join(t.TempDir(), "backup")

	h.worker.Send(RunBackup{Path: dest})
	snap := h.wait("backup end", func(s Snapshot) bool { return s.BackupSeq == 1 })
	if snap.Backup.Status != TaskSuccess {
		t.Fatalf("backup status %+v", snap.Backup)
	}
	if snap.Backup.Summary.Files != int64(len(testsupport.DefaultVaultFiles)) {
		t.Fatalf("summary %+v", snap.Backup.Summary)
	}
	if _, err := os.Stat(filepath.Join(dest, "media", "0", "original.pma")); err != nil {
		t.Fatalf("backup copy missing: %v", err)
	}
	if h.cfg.Backup.Path != dest {
		t.Fatalf("backup path not remembered: %q", h.cfg.Backup.Path)
	}

	h.finish()
	h.history.mu.Lock()
	defer h.history.mu.Unlock()
	if len(h.history.begun) != 1 || h.history.begun[0] != history.TriggerManual {
		t.Fatalf("history begin %v", h.history.begun)
	}
	if len(h.history.outcomes) != 1 || h.history.outcomes[0].Status != history.StatusSucceeded {
		t.Fatalf("history outcomes %+v", h.history.outcomes)
	}
}

func TestBackupWithoutDestinationFails(t *testing.T) {
	h := newHarness(t)
	vault := testsupport.NewVault(t)
	h.configureVault(vault, 8000)
	h.openVault(vault)

	h.worker.Send(RunBackup{})
	snap := h.wait("backup error", func(s Snapshot) bool { return s.BackupSeq == 1 })
	if snap.Backup.Status != TaskError || snap.Backup.ErrKind != backup.KindUnknown {
		t.Fatalf("unexpected backup state %+v", snap.Backup)
	}
}

func writeCredentials(t *testing.T, vault, user, password string, key []byte) {
	t.Helper()
	creds := &credentials.Credentials{User: user}
	if err := creds.RecoverKey(key, password); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}
	if err := creds.Save(filepath.Join(vault, credentials.FileName)); err != nil {
		t.Fatalf("save credentials: %v", err)
	}
}

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func TestExportKeyOutcomes(t *testing.T) {
	h := newHarness(t)
	vault := testsupport.NewVault(t, testsupport.VaultFile{Path: "main.index", Size: 8})
	key := testKey()
	writeCredentials(t, vault, "admin", "secret", key)
	h.configureVault(vault, 8000)
	h.openVault(vault)

	tests := []struct {
		name     string
		msg      ExportKey
		status   TaskStatus
		kind     KeyErrorKind
		checkKey bool
	}{
		{"wrong user", ExportKey{Username: "root", Password: "secret"}, TaskError, KeyErrorInvalidUser, false},
		{"wrong password", ExportKey{Username: "admin", Password: "nope"}, TaskError, KeyErrorInvalidPassword, false},
		{"success", ExportKey{Username: "admin", Password: "secret"}, TaskSuccess, "", true},
	}
	for i, tt := range tests {
		h.worker.Send(tt.msg)
		want := uint64(i + 1)
		snap := h.wait(tt.name, func(s Snapshot) bool { return s.KeySeq == want })
		if snap.Key.Status != tt.status || snap.Key.Kind != tt.kind {
			t.Fatalf("%s: got %+v", tt.name, snap.Key)
		}
		if tt.checkKey && snap.Key.Key != strings.ToUpper(hex.EncodeToString(key)) {
			t.Fatalf("%s: key %q", tt.name, snap.Key.Key)
		}
	}
}

func TestRecoverKeyRewritesCredentials(t *testing.T) {
	h := newHarness(t)
	key := testKey()
	sample, err := vaultcrypto.Encrypt([]byte(`{"albums":[]}`), vaultcrypto.MethodFlat, key)
	if err != nil {
		t.Fatalf("encrypt sample: %v", err)
	}
	vault := testsupport.NewVault(t, testsupport.VaultFile{Path: "main.index", Size: 8})
	if err := os.WriteFile(filepath.Join(vault, "albums.pmv"), sample, 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	writeCredentials(t, vault, "old", "forgotten", key)
	h.configureVault(vault, 8000)
	h.openVault(vault)

	wrong := append([]byte(nil), key...)
	wrong[0] ^= 0xff
	h.worker.Send(RecoverKey{Key: wrong, Username: "new", Password: "fresh"})
	snap := h.wait("invalid key", func(s Snapshot) bool { return s.KeySeq == 1 })
	if snap.Key.Kind != KeyErrorInvalidKey {
		t.Fatalf("expected invalid key, got %+v", snap.Key)
	}

	h.worker.Send(RecoverKey{Key: key, Username: "new", Password: "fresh"})
	snap = h.wait("recovered", func(s Snapshot) bool { return s.KeySeq == 2 })
	if snap.Key.Status != TaskSuccess {
		t.Fatalf("recover failed: %+v", snap.Key)
	}
	creds, err := credentials.Load(filepath.Join(vault, credentials.FileName))
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	got, err := creds.ExportKey("fresh")
	if err != nil || creds.User != "new" || hex.EncodeToString(got) != hex.EncodeToString(key) {
		t.Fatalf("recovered record does not unlock the key: user %q, err %v", creds.User, err)
	}
}

func TestToolFailureRestartsDaemon(t *testing.T) {
	script := `if [ "$1" = "--recover" ]; then echo "[ERROR] index damaged"; exit 0; fi
exit 5`
	h := newHarness(t, testsupport.WithDaemonScript(script))
	vault := testsupport.NewVault(t)
	h.configureVault(vault, 1)
	h.openVault(vault)

	h.worker.Send(RunTool{Tool: "recover"})
	snap := h.wait("tool end", func(s Snapshot) bool { return s.ToolSeq == 1 })
	if snap.Tool.Status != TaskError || snap.Tool.Detail != "index damaged" {
		t.Fatalf("tool state %+v", snap.Tool)
	}
	h.wait("daemon restart attempt", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusError })
}

func TestToolSpawnFailureRestartsDaemon(t *testing.T) {
	h := newHarness(t, testsupport.WithDaemonScript("exit 5"))
	vault := testsupport.NewVault(t)
	h.configureVault(vault, 1)
	h.openVault(vault)

	h.worker.Send(RunTool{Tool: "defrag"})
	snap := h.wait("tool end", func(s Snapshot) bool { return s.ToolSeq == 1 })
	if snap.Tool.Status != TaskError {
		t.Fatalf("tool state %+v", snap.Tool)
	}
	h.wait("daemon restart attempt", func(s Snapshot) bool { return s.Daemon.Status == DaemonStatusError })
}

func TestUserSettingsOnlySavedOnChange(t *testing.T) {
	h := newHarness(t)
	before := h.ready().Seq

	h.worker.Send(SetUserSettings{Locale: h.cfg.UI.Locale, Theme: h.cfg.UI.Theme})
	h.worker.Send(SetUserSettings{Locale: "es", Theme: "purple"})
	snap := h.wait("settings", func(s Snapshot) bool { return s.Settings.Locale == "es" })
	if snap.Seq != before+1 || snap.Settings.Theme != "" {
		t.Fatalf("unexpected settings events: %+v (seq %d, before %d)", snap.Settings, snap.Seq, before)
	}
	loaded, _, _, err := config.Load(filepath.Join(testsupport.BaseDir(h.cfg), "config.toml"))
	if err != nil || loaded.UI.Locale != "es" {
		t.Fatalf("settings not persisted: %+v, %v", loaded, err)
	}
}
