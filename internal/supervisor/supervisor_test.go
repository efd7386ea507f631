package supervisor_test

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/supervisor"
	"vaultlauncher/internal/testsupport"
	"vaultlauncher/internal/vaultconfig"
)

func newSupervisor(t *testing.T) (*supervisor.Supervisor, chan supervisor.Report) {
	t.Helper()
	reports := make(chan supervisor.Report, 16)
	sup := supervisor.New(filepath.Join(t.TempDir(), "daemon"), func(r supervisor.Report) {
		reports <- r
	}, supervisor.WithPollInterval(10*time.Millisecond), supervisor.WithGraceTimeout(time.Second))
	t.Cleanup(sup.Stop)
	return sup, reports
}

func waitReport(t *testing.T, reports <-chan supervisor.Report) supervisor.Report {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for supervisor report")
		return supervisor.Report{}
	}
}

func TestExitErrorFromCode(t *testing.T) {
	tests := []struct {
		code int
		kind supervisor.ErrorKind
	}{
		{4, supervisor.KindLock},
		{5, supervisor.KindPortInUse},
		{6, supervisor.KindInvalidTLS},
		{1, supervisor.KindUnknown},
		{0, supervisor.KindUnknown},
	}
	for _, tt := range tests {
		got := supervisor.ExitErrorFromCode(tt.code)
		if got.Kind != tt.kind || got.Code != tt.code {
			t.Fatalf("code %d: got %+v, want kind %s", tt.code, got, tt.kind)
		}
	}
	if detail := supervisor.ExitErrorFromCode(9).Detail; detail != "Daemon exit status code: 9" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestLaunchSpecArgsAndEnv(t *testing.T) {
	spec := supervisor.LaunchSpec{
		Binary:       "/usr/bin/pmvd",
		VaultPath:    "/vault",
		FrontendPath: "/www",
		FFmpeg:       config.FFmpeg{FFmpegPath: "/ff", FFprobePath: "/fp", VideoCodec: "libx264"},
		Config: vaultconfig.LauncherConfig{
			Port:        8000,
			Local:       true,
			SSLCert:     "/cert.pem",
			CacheSize:   512,
			LogRequests: true,
		},
	}
	got := strings.Join(spec.Args("tag"), " ")
	want := "--daemon --skip-lock --clean --vault-path /vault --port 8000 --bind 127.0.0.1 --launch-tag tag --cache-size 512 --log-requests"
	if got != want {
		t.Fatalf("args\n got %q\nwant %q", got, want)
	}

	env := strings.Join(spec.Env(), "\n")
	if !strings.Contains(env, "SSL_CERT=\n") || !strings.HasSuffix(env, "SSL_KEY=") {
		t.Fatalf("tls env should be empty without a key, got %q", env)
	}
	if !strings.Contains(env, "FFMPEG_VIDEO_ENCODER=libx264") || !strings.Contains(env, "FRONTEND_PATH=/www") {
		t.Fatalf("unexpected env %q", env)
	}

	spec.Config.Local = false
	spec.Config.Debug = true
	spec.Config.LogRequests = false
	spec.Config.CacheSize = 0
	got = strings.Join(spec.Args("tag"), " ")
	if !strings.Contains(got, "--bind  --launch-tag") || !strings.HasSuffix(got, "--cache-size 1024 --debug") {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestStartReportsMappedExitCode(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDaemonScript(`echo "$@" > "$0.args"; echo "$FFMPEG_PATH" > "$0.env"; exit 5`))
	sup, reports := newSupervisor(t)

	g, err := sup.Start(supervisor.LaunchSpec{
		Binary:    cfg.Binaries.Daemon,
		VaultPath: "/vault",
		FFmpeg:    config.FFmpeg{FFmpegPath: "/opt/ffmpeg"},
		Config:    vaultconfig.LauncherConfig{Port: 1, Local: true},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	r := waitReport(t, reports)
	if r.Kind != supervisor.ReportStartError || r.Generation != g {
		t.Fatalf("unexpected report %+v", r)
	}
	if r.Err == nil || r.Err.Kind != supervisor.KindPortInUse {
		t.Fatalf("expected port in use, got %+v", r.Err)
	}
	sup.Reap(g)
	if sup.Running() {
		t.Fatal("process still tracked after reap")
	}

	args, err := os.ReadFile(cfg.Binaries.Daemon + ".args")
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if !strings.HasPrefix(string(args), "--daemon --skip-lock --clean --vault-path /vault --port 1") {
		t.Fatalf("unexpected args %q", args)
	}
	env, err := os.ReadFile(cfg.Binaries.Daemon + ".env")
	if err != nil {
		t.Fatalf("read env: %v", err)
	}
	if strings.TrimSpace(string(env)) != "/opt/ffmpeg" {
		t.Fatalf("unexpected FFMPEG_PATH %q", env)
	}
	if sup.LogFile() == "" {
		t.Fatal("expected a daemon log file")
	}
}

func TestStartHealthyThenStop(t *testing.T) {
	var probed atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probed.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	_, portText, err := net.SplitHostPort(strings.TrimPrefix(server.URL, "http://"))
	if err != nil {
		t.Fatalf("split server url: %v", err)
	}
	port, _ := strconv.Atoi(portText)

	cfg := testsupport.NewConfig(t, testsupport.WithDaemonScript("echo started; exec sleep 30"))
	sup, reports := newSupervisor(t)

	g, err := sup.Start(supervisor.LaunchSpec{
		Binary:      cfg.Binaries.Daemon,
		VaultPath:   "/vault",
		Config:      vaultconfig.LauncherConfig{Port: port},
		OpenBrowser: true,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	r := waitReport(t, reports)
	if r.Kind != supervisor.ReportStarted || r.Generation != g || !r.OpenBrowser {
		t.Fatalf("unexpected report %+v", r)
	}
	if got, _ := probed.Load().(string); got != "/api/admin/launcher/"+r.LaunchTag {
		t.Fatalf("probed %q for tag %q", got, r.LaunchTag)
	}

	sup.Stop()
	if sup.Running() {
		t.Fatal("process still tracked after stop")
	}
	if sup.Current(g) {
		t.Fatal("stop should advance the generation")
	}
	select {
	case extra := <-reports:
		t.Fatalf("no report expected after stop, got %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	data, err := os.ReadFile(sup.LogFile())
	if err != nil {
		t.Fatalf("read daemon log: %v", err)
	}
	if !strings.Contains(string(data), "started") {
		t.Fatalf("daemon stdout not captured: %q", data)
	}
}

func TestStartReplacesRunningInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDaemonScript("exec sleep 30"))
	sup, _ := newSupervisor(t)
	spec := supervisor.LaunchSpec{Binary: cfg.Binaries.Daemon, Config: vaultconfig.LauncherConfig{Port: 1}}

	first, err := sup.Start(spec)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := sup.Start(spec)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if second <= first || sup.Current(first) || !sup.Current(second) {
		t.Fatalf("generations first=%d second=%d", first, second)
	}
	if !sup.Running() {
		t.Fatal("second instance should be tracked")
	}
}

func TestStartSpawnFailure(t *testing.T) {
	sup, reports := newSupervisor(t)
	_, err := sup.Start(supervisor.LaunchSpec{Binary: filepath.Join(t.TempDir(), "missing")})
	var exitErr *supervisor.ExitError
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if !errors.As(err, &exitErr) || exitErr.Kind != supervisor.KindUnknown {
		t.Fatalf("expected unknown exit error, got %v", err)
	}
	if sup.Running() {
		t.Fatal("nothing should be tracked")
	}
	select {
	case r := <-reports:
		t.Fatalf("unexpected report %+v", r)
	default:
	}
}
