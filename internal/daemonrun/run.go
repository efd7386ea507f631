package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/daemonctl"
	"vaultlauncher/internal/deps"
	"vaultlauncher/internal/desktop"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/notifications"
	"vaultlauncher/internal/schedule"
	"vaultlauncher/internal/worker"
)

// Options configures the serving launcher.
type Options struct {
	ConfigPath  string
	SocketPath  string
	VaultPath   string
	LogLevel    string
	Development bool
}

// Run serves the launcher until a signal arrives or a client asks it to
// finish. It owns the worker, the IPC socket and the backup schedule.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.SocketPath != "" {
		cfg.Paths.SocketPath = opts.SocketPath
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
		FilePath:    cfg.LogFilePath(),
		Development: opts.Development,
		SessionID:   uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.DaemonLogDir(), Pattern: "*.log"},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := daemonctl.PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	wd := worker.Deps{
		Config:     cfg,
		ConfigPath: opts.ConfigPath,
		Logger:     logger,
	}
	sys := desktop.NewSystem()
	wd.Opener = sys
	wd.Clipboard = sys

	var serverOpts []ipc.Option
	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		logging.WarnWithContext(logger, "backup history unavailable", "history_open_failed",
			logging.String("path", cfg.HistoryDBPath()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "backup runs are not recorded"),
			logging.String(logging.FieldErrorHint, "remove the history database if it is corrupt"),
		)
	} else {
		defer store.Close()
		wd.History = store
		serverOpts = append(serverOpts, ipc.WithHistory(store))
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		notifier := notifications.NewService(cfg)
		wd.Notifier = notifier
		serverOpts = append(serverOpts, ipc.WithNotifier(notifier))
	}

	tracker := worker.NewTracker(worker.SinkFunc(func(e worker.Event) {
		logger.Debug("launcher event", logging.String("event", fmt.Sprintf("%T", e)))
	}))
	wd.Sink = tracker
	w := worker.New(wd)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, w, tracker, logger, serverOpts...)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	scheduler := schedule.New(func() {
		w.Send(worker.RunBackup{Trigger: history.TriggerScheduled})
	}, logging.NewComponentLogger(logger, "schedule"))
	if err := scheduler.Set(cfg.Backup.Schedule); err != nil {
		logging.WarnWithContext(logger, "backup schedule ignored", "schedule_invalid",
			logging.String("schedule", cfg.Backup.Schedule),
			logging.Error(err),
			logging.String(logging.FieldImpact, "backups only run on request"),
			logging.String(logging.FieldErrorHint, "fix backup.schedule in the config file"),
		)
	}
	scheduler.Start()
	defer scheduler.Stop()

	vault := opts.VaultPath
	if vault == "" && cfg.UI.AutoStart {
		vault = cfg.Paths.DefaultVault
	}
	if vault != "" {
		w.Send(worker.OpenVault{Path: vault})
	}

	logger.Info("vault launcher serving",
		logging.String(logging.FieldEventType, "launcher_serving"),
		logging.String("socket", cfg.Paths.SocketPath),
		logging.String("schedule", scheduler.Expression()),
	)
	if err := w.Run(signalCtx); err != nil {
		return err
	}
	logger.Info("vault launcher shutting down",
		logging.String(logging.FieldEventType, "launcher_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range daemonctl.ResolveDependencies(cfg) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	attrs = append(attrs, logging.String("video_codec", orDefault(cfg.FFmpeg.VideoCodec, deps.VideoCodecDefault+" (auto)")))
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
