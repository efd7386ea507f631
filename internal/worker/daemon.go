package worker

import (
	"errors"

	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/notifications"
	"vaultlauncher/internal/supervisor"
)

// startDaemon (re)starts the daemon for the open vault.
func (w *Worker) startDaemon(openBrowser bool) {
	if !w.requireVault("start_daemon") {
		return
	}
	if !w.state.LauncherConfig.Configured() {
		w.logger.Debug("launcher config incomplete; daemon not started")
		return
	}
	if w.daemon.Running() {
		w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStopping})
	}
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStarting})

	g, err := w.daemon.Start(supervisor.LaunchSpec{
		Binary:       w.state.DaemonBinary,
		VaultPath:    w.state.VaultPath,
		FrontendPath: w.state.FrontendPath,
		FFmpeg:       w.state.FFmpeg,
		Config:       w.state.LauncherConfig,
		OpenBrowser:  openBrowser,
	})
	if err != nil {
		var exitErr *supervisor.ExitError
		if !errors.As(err, &exitErr) {
			exitErr = &supervisor.ExitError{Kind: supervisor.KindUnknown, Code: -1, Detail: err.Error()}
		}
		w.publishDaemonError(g, exitErr)
		return
	}
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStarting, LogFile: w.daemon.LogFile()})
}

// stopDaemon terminates the daemon and waits for it. Reports of the stopped
// instance become stale, so the final status is published here.
func (w *Worker) stopDaemon() {
	if !w.daemon.Running() {
		w.daemon.Stop()
		return
	}
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStopping})
	w.daemon.Stop()
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStopped, LogFile: w.daemon.LogFile()})
}

func (w *Worker) handleDaemonStarted(m DaemonStarted) {
	if !w.daemon.Current(m.Generation) {
		w.logger.Debug("stale daemon start report", logging.Generation(m.Generation))
		return
	}
	url := w.state.LauncherConfig.BrowserURL()
	w.logger.Info("vault daemon running",
		logging.String(logging.FieldEventType, "daemon_running"),
		logging.Generation(m.Generation),
		logging.String("url", url),
	)
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusRunning, URL: url, LogFile: w.daemon.LogFile()})
	w.notify(notifications.EventDaemonStarted, notifications.Payload{"vault": w.state.VaultPath, "url": url})
	if m.OpenBrowser {
		w.handleOpenBrowser()
	}
}

func (w *Worker) handleDaemonStartError(m DaemonStartError) {
	if !w.daemon.Current(m.Generation) {
		w.logger.Debug("stale daemon start error", logging.Generation(m.Generation))
		return
	}
	w.daemon.Reap(m.Generation)
	w.publishDaemonError(m.Generation, m.Err)
}

func (w *Worker) publishDaemonError(g uint64, exitErr *supervisor.ExitError) {
	if exitErr == nil {
		exitErr = supervisor.ExitErrorFromCode(0)
	}
	logging.ErrorWithContext(w.logger, "vault daemon failed to start", "daemon_start_failed",
		logging.Generation(g),
		logging.String("kind", string(exitErr.Kind)),
		logging.Int("exit_code", exitErr.Code),
		logging.Error(exitErr),
		logging.String(logging.FieldErrorHint, daemonErrorHint(exitErr.Kind)),
		logging.String("log_file", w.daemon.LogFile()),
	)
	w.sink.Publish(DaemonStatusChanged{
		Status:  DaemonStatusError,
		LogFile: w.daemon.LogFile(),
		ErrKind: exitErr.Kind,
		Detail:  exitErr.Detail,
	})
	w.notify(notifications.EventDaemonFailed, notifications.Payload{"vault": w.state.VaultPath, "error": exitErr})
}

func (w *Worker) handleDaemonStopped(m DaemonStopped) {
	if !w.daemon.Current(m.Generation) {
		w.logger.Debug("stale daemon stop report", logging.Generation(m.Generation))
		return
	}
	w.daemon.Reap(m.Generation)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "daemon_exited"),
		logging.Generation(m.Generation),
	}
	if m.Err != nil {
		attrs = append(attrs, logging.Int("exit_code", m.Err.Code))
	}
	w.logger.Info("vault daemon exited", logging.Args(attrs...)...)
	w.sink.Publish(DaemonStatusChanged{Status: DaemonStatusStopped, LogFile: w.daemon.LogFile()})
	w.notify(notifications.EventDaemonStopped, notifications.Payload{"vault": w.state.VaultPath})
}

func (w *Worker) handleOpenBrowser() {
	if !w.state.VaultOpen() || w.opener == nil {
		return
	}
	url := w.state.LauncherConfig.BrowserURL()
	if err := w.opener.Open(url); err != nil {
		logging.WarnWithContext(w.logger, "browser could not be opened", "open_browser_failed",
			logging.String("url", url),
			logging.Error(err),
			logging.String(logging.FieldImpact, "open the vault address manually"),
		)
	}
}

func (w *Worker) handleOpenLogFile() {
	path := w.daemon.LogFile()
	if path == "" || w.opener == nil {
		return
	}
	if err := w.opener.Open(path); err != nil {
		logging.WarnWithContext(w.logger, "log file could not be opened", "open_log_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "open the daemon log manually"),
		)
	}
}

func daemonErrorHint(kind supervisor.ErrorKind) string {
	switch kind {
	case supervisor.KindLock:
		return "another daemon is serving this vault; stop it first"
	case supervisor.KindPortInUse:
		return "choose a different port in the launcher config"
	case supervisor.KindInvalidTLS:
		return "check the TLS certificate and key paths"
	default:
		return "see the daemon log file"
	}
}
