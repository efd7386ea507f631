package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/deps"
	"vaultlauncher/internal/desktop"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/notifications"
	"vaultlauncher/internal/supervisor"
	"vaultlauncher/internal/tools"
)

const (
	defaultNotifyTimeout = 15 * time.Second
	codecProbeTimeout    = 10 * time.Second
)

// Picker asks the user for a path. ok is false when the dialog was dismissed.
type Picker interface {
	Pick(ctx context.Context, target PickTarget) (path string, ok bool, err error)
}

// HistoryRecorder persists backup runs. *history.Store implements it.
type HistoryRecorder interface {
	Begin(ctx context.Context, vaultPath, backupPath string, trigger history.Trigger) (int64, error)
	Finish(ctx context.Context, id int64, outcome history.Outcome) error
}

// Deps are the collaborators of a Worker. Config is required; everything else
// may be nil.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Sink       Sink
	Picker     Picker
	Opener     desktop.Opener
	Clipboard  desktop.Clipboard
	History    HistoryRecorder
	Notifier   notifications.Service
	Logger     *slog.Logger
}

// Option customises a Worker.
type Option func(*Worker)

// WithSupervisorOptions passes options to the daemon supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(w *Worker) {
		w.supervisorOpts = append(w.supervisorOpts, opts...)
	}
}

// WithNotifyTimeout bounds each push notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.notifyTimeout = d
		}
	}
}

// Worker is the launcher control loop.
type Worker struct {
	cfg        *config.Config
	configPath string
	sink       Sink
	picker     Picker
	opener     desktop.Opener
	clipboard  desktop.Clipboard
	history    HistoryRecorder
	notifier   notifications.Service
	logger     *slog.Logger

	supervisorOpts []supervisor.Option
	notifyTimeout  time.Duration

	box    *mailbox
	state  State
	daemon *supervisor.Supervisor
	tools  *tools.Runner

	runCtx context.Context
	bg     sync.WaitGroup
}

// New builds a Worker. Nothing happens until Run is called.
func New(d Deps, opts ...Option) *Worker {
	w := &Worker{
		cfg:           d.Config,
		configPath:    d.ConfigPath,
		sink:          d.Sink,
		picker:        d.Picker,
		opener:        d.Opener,
		clipboard:     d.Clipboard,
		history:       d.History,
		notifier:      d.Notifier,
		logger:        d.Logger,
		notifyTimeout: defaultNotifyTimeout,
		box:           newMailbox(),
		runCtx:        context.Background(),
	}
	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	w.logger = logging.NewComponentLogger(w.logger, "worker")
	if w.sink == nil {
		w.sink = SinkFunc(func(Event) {})
	}
	for _, opt := range opts {
		opt(w)
	}

	supOpts := []supervisor.Option{
		supervisor.WithLogger(logging.NewComponentLogger(d.Logger, "supervisor")),
		supervisor.WithKeepLogs(w.cfg.Logging.KeepDaemonLogs),
	}
	w.daemon = supervisor.New(w.cfg.DaemonLogDir(), w.onDaemonReport, append(supOpts, w.supervisorOpts...)...)
	w.tools = tools.NewRunner(w.onToolResult, logging.NewComponentLogger(d.Logger, "tools"))
	return w
}

// Send queues msg. It never blocks and is safe from any goroutine.
func (w *Worker) Send(msg Message) {
	w.box.send(msg)
}

// Run performs the startup checks and handles messages until Finish arrives
// or ctx is done. Before returning it cancels the backup and the running
// tool, stops the daemon and releases the vault lock.
func (w *Worker) Run(ctx context.Context) error {
	w.runCtx = ctx
	w.startup()
	defer w.shutdown()

	for {
		msg, ok := w.box.receive(ctx)
		if !ok {
			return nil
		}
		if _, done := msg.(Finish); done {
			w.logger.Debug("worker finishing")
			return nil
		}
		if w.state.Fatal != "" {
			w.logger.Debug("message ignored after fatal error",
				logging.String("message", messageName(msg)),
				logging.String("fatal", string(w.state.Fatal)),
			)
			continue
		}
		w.dispatch(msg)
	}
}

func (w *Worker) dispatch(msg Message) {
	switch m := msg.(type) {
	case SelectVaultFolder:
		w.pick(PickVaultFolder)
	case OpenVault:
		w.handleOpenVault(m)
	case CreateFolderAndOpen:
		w.handleCreateFolderAndOpen()
	case ForceOpenVault:
		w.handleForceOpenVault()
	case SetInitialConfig:
		w.handleSetInitialConfig(m)
	case CreateVault:
		w.handleCreateVault(m)
	case CloseVault:
		w.handleCloseVault()

	case StartVault:
		w.startDaemon(m.OpenBrowser)
	case StopVault:
		w.stopDaemon()
	case DaemonStarted:
		w.handleDaemonStarted(m)
	case DaemonStartError:
		w.handleDaemonStartError(m)
	case DaemonStopped:
		w.handleDaemonStopped(m)
	case OpenBrowser:
		w.handleOpenBrowser()
	case OpenLogFile:
		w.handleOpenLogFile()

	case ResetConfig:
		w.publishConfig()
	case UpdateHostPort:
		w.handleUpdateHostPort(m)
	case UpdateTLS:
		w.handleUpdateTLS(m)
	case UpdateFFmpeg:
		w.handleUpdateFFmpeg(m)
	case UpdateOther:
		w.handleUpdateOther(m)
	case SetUserSettings:
		w.handleSetUserSettings(m)

	case SelectFFmpegBinary:
		w.pick(PickFFmpeg)
	case SelectFFprobeBinary:
		w.pick(PickFFprobe)
	case SelectTLSCert:
		w.pick(PickTLSCert)
	case SelectTLSKey:
		w.pick(PickTLSKey)
	case SelectBackupPath:
		w.pick(PickBackupPath)
	case PathSelected:
		w.handlePathSelected(m)

	case RunBackup:
		w.handleRunBackup(m)
	case CancelBackup:
		w.handleCancelBackup()
	case BackupEnded:
		w.handleBackupEnded(m)

	case ExportKey:
		w.handleExportKey(m)
	case RecoverKey:
		w.handleRecoverKey(m)

	case RunTool:
		w.handleRunTool(m)
	case CancelTool:
		w.handleCancelTool()
	case ToolSuccess:
		w.handleToolSuccess(m)
	case ToolError:
		w.handleToolError(m)

	case CopyToClipboard:
		w.handleCopyToClipboard(m)
	default:
		w.logger.Debug("unhandled message", logging.String("message", messageName(msg)))
	}
}

// startup locates the daemon and its tools. A missing program is fatal.
func (w *Worker) startup() {
	w.state.UserSettings = UserSettings{Locale: w.cfg.UI.Locale, Theme: w.cfg.UI.Theme}
	w.state.BackupPath = w.cfg.Backup.Path

	resolved, err := deps.Resolve(w.cfg)
	if err != nil {
		kind := fatalKind(err)
		w.state.Fatal = kind
		logging.ErrorWithContext(w.logger, "launcher cannot start", "fatal_error",
			logging.String("fatal", string(kind)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "install the missing program or set its path in the launcher config"),
		)
		w.sink.Publish(LauncherStatusChanged{Status: StatusFatalError})
		w.sink.Publish(FatalError{Kind: kind, Detail: err.Error()})
		w.notify(notifications.EventError, notifications.Payload{"context": "startup", "error": err})
		return
	}
	w.state.DaemonBinary = resolved.Daemon
	w.state.FrontendPath = resolved.Frontend
	w.state.FFmpeg = resolved.FFmpeg
	if w.state.FFmpeg.VideoCodec == "" {
		w.state.FFmpeg.VideoCodec = w.detectVideoCodec(resolved.FFmpeg.FFmpegPath)
	}

	w.logger.Info("launcher ready",
		logging.String(logging.FieldEventType, "worker_ready"),
		logging.String("daemon", w.state.DaemonBinary),
		logging.String("frontend", w.state.FrontendPath),
		logging.String("ffmpeg", w.state.FFmpeg.FFmpegPath),
		logging.String("video_codec", w.state.FFmpeg.VideoCodec),
	)
	w.sink.Publish(LauncherStatusChanged{Status: StatusClosed})
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStopped})
	w.sink.Publish(ConfigSnapshot{FFmpeg: w.state.FFmpeg})
	w.sink.Publish(UserSettingsChanged{Locale: w.state.UserSettings.Locale, Theme: w.state.UserSettings.Theme})
}

func (w *Worker) detectVideoCodec(ffmpegPath string) string {
	ctx, cancel := context.WithTimeout(w.runCtx, codecProbeTimeout)
	defer cancel()
	codec, err := deps.DetectVideoCodec(ctx, ffmpegPath)
	if err != nil {
		logging.WarnWithContext(w.logger, "video encoder detection failed; using default", "codec_probe_failed",
			logging.Error(err),
			logging.String("video_codec", deps.VideoCodecDefault),
			logging.String(logging.FieldImpact, "media encoding may fail if ffmpeg lacks the default encoder"),
		)
		return deps.VideoCodecDefault
	}
	return codec
}

func (w *Worker) shutdown() {
	w.cancelBackupTask()
	w.tools.Cancel()
	w.daemon.Stop()
	if w.state.VaultOpen() {
		if err := w.state.releaseVault(); err != nil {
			w.logger.Debug("vault lock release failed", logging.Error(err))
		}
	}
	// Backup goroutines queue BackupEnded before they end; record them.
	for _, msg := range w.box.drain() {
		if ended, ok := msg.(BackupEnded); ok {
			w.finishHistory(ended)
		}
	}
	w.bg.Wait()
	w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stopped"))
}

func (w *Worker) onDaemonReport(r supervisor.Report) {
	switch r.Kind {
	case supervisor.ReportStarted:
		w.Send(DaemonStarted{Generation: r.Generation, OpenBrowser: r.OpenBrowser})
	case supervisor.ReportStartError:
		w.Send(DaemonStartError{Generation: r.Generation, Err: r.Err})
	case supervisor.ReportStopped:
		w.Send(DaemonStopped{Generation: r.Generation, Err: r.Err})
	}
}

func (w *Worker) onToolResult(r tools.Result) {
	if r.Failed {
		w.Send(ToolError{ToolID: r.Generation, Detail: r.Detail})
		return
	}
	w.Send(ToolSuccess{ToolID: r.Generation})
}

// notify publishes a push notification without blocking the loop.
func (w *Worker) notify(event notifications.Event, payload notifications.Payload) {
	if w.notifier == nil {
		return
	}
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.notifyTimeout)
		defer cancel()
		if err := w.notifier.Publish(ctx, event, payload); err != nil {
			w.logger.Debug("notification failed",
				logging.String("event", string(event)),
				logging.Error(err),
			)
		}
	}()
}

func fatalKind(err error) FatalKind {
	switch {
	case errors.Is(err, deps.ErrDaemonMissing):
		return FatalDaemonMissing
	case errors.Is(err, deps.ErrFrontendMissing):
		return FatalFrontendMissing
	case errors.Is(err, deps.ErrFFmpegMissing):
		return FatalFFmpegMissing
	default:
		return FatalFFprobeMissing
	}
}
