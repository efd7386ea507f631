package supervisor

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"time"

	"vaultlauncher/internal/logging"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultGraceTimeout = 5 * time.Second
	defaultProbeTimeout = 2 * time.Second
	defaultKeepLogs     = 100
)

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithPollInterval overrides the health probe interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithGraceTimeout overrides how long Stop waits after SIGTERM before killing.
func WithGraceTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.graceTimeout = d
		}
	}
}

// WithClock overrides the time source used for launch tags and log names.
func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHTTPClient overrides the health probe client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Supervisor) {
		if client != nil {
			s.client = client
		}
	}
}

// WithKeepLogs sets how many daemon log files survive each start.
func WithKeepLogs(keep int) Option {
	return func(s *Supervisor) {
		s.keepLogs = keep
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Supervisor owns at most one daemon process.
type Supervisor struct {
	logDir       string
	report       ReportFunc
	logger       *slog.Logger
	pollInterval time.Duration
	graceTimeout time.Duration
	keepLogs     int
	now          func() time.Time
	client       *http.Client

	generation uint64
	proc       *process
	logFile    string
}

type process struct {
	cmd        *exec.Cmd
	generation uint64
	launchTag  string
	logFile    *os.File
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a Supervisor writing daemon output below logDir and delivering
// watcher reports to report.
func New(logDir string, report ReportFunc, opts ...Option) *Supervisor {
	s := &Supervisor{
		logDir:       logDir,
		report:       report,
		logger:       logging.NewNop(),
		pollInterval: defaultPollInterval,
		graceTimeout: defaultGraceTimeout,
		keepLogs:     defaultKeepLogs,
		now:          time.Now,
		client: &http.Client{
			Timeout: defaultProbeTimeout,
			Transport: &http.Transport{
				// The daemon usually serves a self-signed certificate.
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.report == nil {
		s.report = func(Report) {}
	}
	return s
}

// Generation returns the current generation.
func (s *Supervisor) Generation() uint64 {
	return s.generation
}

// Current reports whether g belongs to the most recent start.
func (s *Supervisor) Current(g uint64) bool {
	return g == s.generation
}

// Running reports whether a daemon process is tracked.
func (s *Supervisor) Running() bool {
	return s.proc != nil
}

// LogFile returns the log file of the most recent start, if any.
func (s *Supervisor) LogFile() string {
	return s.logFile
}

// LaunchTag returns the launch tag of the tracked process.
func (s *Supervisor) LaunchTag() string {
	if s.proc == nil {
		return ""
	}
	return s.proc.launchTag
}

// Start stops any tracked process and launches a new daemon. The returned
// generation is the one carried by every report of this instance. A spawn
// failure returns an *ExitError of kind KindUnknown and no report follows.
func (s *Supervisor) Start(spec LaunchSpec) (uint64, error) {
	s.generation++
	g := s.generation
	s.stopProcess()

	now := s.now()
	logFile, err := logging.NewDaemonLogFile(s.logDir, now)
	if err != nil {
		return g, spawnError(err)
	}
	s.logFile = logFile.Name()
	logging.PruneLogFiles(s.logger, s.keepLogs, logging.RetentionTarget{
		Dir:     s.logDir,
		Pattern: logging.DaemonLogPattern,
	})

	tag := fmt.Sprintf("%d-%d", now.UnixMilli(), os.Getpid())
	cmd := exec.Command(spec.Binary, spec.Args(tag)...)
	cmd.Env = append(os.Environ(), spec.Env()...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		logging.ErrorWithContext(s.logger, "daemon spawn failed", "daemon_spawn_failed",
			logging.String("binary", spec.Binary),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check binaries.daemon in the launcher config"),
		)
		return g, spawnError(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc := &process{
		cmd:        cmd,
		generation: g,
		launchTag:  tag,
		logFile:    logFile,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	s.proc = proc
	s.logger.Info("daemon launched",
		logging.String(logging.FieldEventType, "daemon_launched"),
		logging.Generation(g),
		logging.String(logging.FieldLaunchTag, tag),
		logging.Int("pid", cmd.Process.Pid),
		logging.String(logging.FieldVaultPath, spec.VaultPath),
		logging.String("log_file", s.logFile),
	)

	go s.watch(ctx, proc, spec.Config.HealthCheckURL(tag), spec.OpenBrowser)
	return g, nil
}

// Stop terminates the tracked process, if any, and advances the generation
// so that reports of the stopped instance become stale. It returns once the
// process has exited and its watcher has finished.
func (s *Supervisor) Stop() {
	s.generation++
	s.stopProcess()
}

// Reap drops the tracked process after it reported an exit of its own. It is
// a no-op when g is stale.
func (s *Supervisor) Reap(g uint64) {
	if s.proc == nil || s.proc.generation != g {
		return
	}
	<-s.proc.done
	s.proc = nil
}

func (s *Supervisor) stopProcess() {
	proc := s.proc
	if proc == nil {
		return
	}
	s.proc = nil
	proc.cancel()

	select {
	case <-proc.done:
		return
	default:
	}
	if err := terminate(proc.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Debug("daemon terminate signal failed", logging.Error(err))
	}
	timer := time.NewTimer(s.graceTimeout)
	defer timer.Stop()
	select {
	case <-proc.done:
	case <-timer.C:
		logging.WarnWithContext(s.logger, "daemon ignored termination; killing", "daemon_kill",
			logging.Generation(proc.generation),
			logging.Duration("grace", s.graceTimeout),
			logging.String(logging.FieldImpact, "daemon state may not be flushed"),
		)
		_ = proc.cmd.Process.Kill()
		<-proc.done
	}
	s.logger.Info("daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
		logging.Generation(proc.generation),
	)
}

// watch polls the health endpoint until the daemon answers or exits, then
// waits for the exit. ctx is cancelled when the owner stops the process; no
// report is delivered after that.
func (s *Supervisor) watch(ctx context.Context, proc *process, healthURL string, openBrowser bool) {
	exited := make(chan error, 1)
	go func() {
		exited <- proc.cmd.Wait()
	}()
	defer close(proc.done)
	defer func() { _ = proc.logFile.Close() }()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for healthy := false; !healthy; {
		select {
		case err := <-exited:
			if ctx.Err() == nil {
				s.report(Report{
					Kind:       ReportStartError,
					Generation: proc.generation,
					LaunchTag:  proc.launchTag,
					Err:        exitErrorFromWait(err),
				})
			}
			return
		case <-ticker.C:
			healthy = s.healthy(ctx, healthURL)
		}
	}

	if ctx.Err() == nil {
		s.report(Report{
			Kind:        ReportStarted,
			Generation:  proc.generation,
			LaunchTag:   proc.launchTag,
			OpenBrowser: openBrowser,
		})
	}

	err := <-exited
	if ctx.Err() == nil {
		s.report(Report{
			Kind:       ReportStopped,
			Generation: proc.generation,
			LaunchTag:  proc.launchTag,
			Err:        exitErrorFromWait(err),
		})
	}
}

func (s *Supervisor) healthy(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
