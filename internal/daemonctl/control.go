package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/deps"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/ipc"
)

// PIDFileName is written to the state directory while a launcher serves.
const PIDFileName = "vaultlauncher.pid"

// LaunchOptions controls launcher process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	VaultPath  string
	LogLevel   string
}

// StartState describes how EnsureRunning found the launcher.
type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures launcher start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
}

// PIDPath is the pid file of the launcher serving cfg.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, PIDFileName)
}

// Launch starts a detached launcher process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if vault := strings.TrimSpace(opts.VaultPath); vault != "" {
		args = append(args, vault)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch launcher: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for launcher")
	}
	return nil, fmt.Errorf("launcher failed to start: %w", lastErr)
}

// EnsureRunning launches the launcher unless it already answers on socketPath.
func EnsureRunning(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	if err == nil {
		_ = client.Close()
		return StartResult{State: StartStateAlreadyRunning}, nil
	}
	if launchErr := Launch(executablePath, opts); launchErr != nil {
		return StartResult{}, launchErr
	}
	client, err = WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	_ = client.Close()
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// WaitForShutdown waits for launcher IPC to disappear.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isUnavailable(err) {
				return nil
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("launcher did not stop: timeout after %s", timeout)
}

// ProcessInfo returns whether launcher IPC is reachable and its PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return true, 0, statusErr
	}
	return true, status.PID, nil
}

// ForceKillProcess sends SIGKILL to the launcher and removes its pid file.
func ForceKillProcess(pidPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read launcher pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine launcher pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate launcher process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill launcher process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

// ErrNotRunning indicates launcher IPC is unavailable.
var ErrNotRunning = errors.New("launcher not running")

// StopResult captures launcher shutdown outcome.
type StopResult struct {
	Acknowledged bool
	ForcedKill   bool
	PID          int
}

// StopAndTerminate asks the launcher to finish and kills it if it is still
// alive after gracePeriod. Finishing stops the vault daemon and releases the
// vault lock; a killed launcher leaves both behind.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isUnavailable(err) {
			return StopResult{}, ErrNotRunning
		}
		return StopResult{}, err
	}
	pid := 0
	if status, statusErr := client.Status(); statusErr == nil {
		pid = status.PID
	}
	resp, err := client.Finish()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid, Acknowledged: resp.Accepted}

	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}
	alive, livePID, aliveErr := ProcessInfo(socketPath)
	if aliveErr != nil || !alive {
		return result, nil
	}
	if livePID == 0 {
		livePID = pid
	}
	killedPID, killErr := ForceKillProcess(PIDPath(cfg), livePID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop launcher process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Snapshot is the launcher status plus what can be learned without it.
type Snapshot struct {
	Running      bool
	Status       *ipc.StatusResponse
	Dependencies []deps.Status
	LastRun      *ipc.HistoryRun
}

// BuildStatusSnapshot collects launcher status and applies offline
// fallbacks for dependencies and the most recent backup.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil {
			snap.Running = true
			snap.Status = resp
		}
	}

	snap.Dependencies = ResolveDependencies(cfg)

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	runs, err := ListHistory(queryCtx, socketPath, cfg, 1)
	if err == nil && len(runs) > 0 {
		snap.LastRun = &runs[0]
	}
	return snap, nil
}

// ResolveDependencies reports the external programs the launcher needs.
func ResolveDependencies(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{Name: "Vault daemon", Command: orDefault(cfg.Binaries.Daemon, "pmvd"), Description: "Serves the vault"},
		{Name: "FFmpeg", Command: orDefault(cfg.FFmpeg.FFmpegPath, "ffmpeg"), Description: "Media transcoding"},
		{Name: "FFprobe", Command: orDefault(cfg.FFmpeg.FFprobePath, "ffprobe"), Description: "Media inspection"},
	})
}

// ListHistory reads backup history through the launcher, or straight from
// the database when no launcher is running.
func ListHistory(ctx context.Context, socketPath string, cfg *config.Config, limit int) ([]ipc.HistoryRun, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		defer client.Close()
		resp, err := client.History(limit)
		if err == nil {
			return resp.Runs, nil
		}
	}
	if _, err := os.Stat(cfg.HistoryDBPath()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return nil, err
	}
	defer store.Close()
	runs, err := store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ipc.HistoryRuns(runs), nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func isUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
