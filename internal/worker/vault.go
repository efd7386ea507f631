package worker

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/credentials"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/tools"
	"vaultlauncher/internal/vaultconfig"
	"vaultlauncher/internal/vaultlock"
)

func (w *Worker) publishStatus(status LauncherStatus) {
	w.sink.Publish(LauncherStatusChanged{Status: status, VaultPath: w.state.VaultPath})
}

func (w *Worker) publishOpenError(kind OpenErrorKind, err error) {
	w.publishStatus(StatusOpenError)
	w.sink.Publish(OpenFailed{Kind: kind, Detail: err.Error()})
}

// requireVault reports whether a vault is open, logging op otherwise.
func (w *Worker) requireVault(op string) bool {
	if w.state.VaultOpen() {
		return true
	}
	w.logger.Debug("no vault open; request ignored", logging.String("op", op))
	return false
}

func (w *Worker) handleOpenVault(m OpenVault) {
	path := strings.TrimSpace(m.Path)
	if path == "" {
		return
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	if w.state.VaultOpen() && w.state.VaultPath != path {
		w.closeVault()
	}
	w.state.VaultPath = path
	w.logger.Info("opening vault",
		logging.String(logging.FieldEventType, "vault_open_requested"),
		logging.String(logging.FieldVaultPath, path),
	)
	w.tryOpenVault()
}

// tryOpenVault takes the vault lock, asking the user how to proceed when the
// folder is missing or someone else holds it.
func (w *Worker) tryOpenVault() {
	info, err := os.Stat(w.state.VaultPath)
	if err != nil || !info.IsDir() {
		w.publishStatus(StatusCreateAsk)
		return
	}

	if !w.state.VaultOpen() {
		lock, err := vaultlock.Acquire(w.state.VaultPath)
		if err != nil {
			attrs := []logging.Attr{
				logging.String(logging.FieldVaultPath, w.state.VaultPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "vault stays closed until the lock is released or overridden"),
			}
			if pid, ownerErr := vaultlock.Owner(w.state.VaultPath); ownerErr == nil {
				attrs = append(attrs, logging.Int("owner_pid", pid))
			}
			logging.WarnWithContext(w.logger, "vault is locked", "vault_locked", attrs...)
			w.publishStatus(StatusLockAsk)
			return
		}
		w.state.VaultLock = lock
	}
	w.openVault()
}

// openVault runs once the lock is held.
func (w *Worker) openVault() {
	w.state.LauncherConfigFile = vaultconfig.Resolve(w.cfg.Paths.LauncherConfigDir, w.state.VaultPath)
	cfg, err := vaultconfig.Load(w.state.LauncherConfigFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(w.logger, "launcher config unreadable; starting from defaults", "launcher_config_invalid",
			logging.String("path", w.state.LauncherConfigFile),
			logging.Error(err),
			logging.String(logging.FieldImpact, "host, port and TLS settings must be entered again"),
		)
	}
	w.state.LauncherConfig = cfg

	if !cfg.Configured() {
		defaults := cfg
		defaults.Hostname = vaultconfig.DefaultHostname
		defaults.Port = vaultconfig.DefaultPort
		defaults.Local = true
		w.sink.Publish(ConfigSnapshot{Launcher: defaults, FFmpeg: w.state.FFmpeg})
		w.publishStatus(StatusInitialConfig)
		return
	}

	if _, err := os.Stat(filepath.Join(w.state.VaultPath, credentials.FileName)); err != nil {
		w.publishStatus(StatusCreateVaultAsk)
		return
	}

	w.logger.Info("vault open",
		logging.String(logging.FieldEventType, "vault_opened"),
		logging.String(logging.FieldVaultPath, w.state.VaultPath),
		logging.String("launcher_config", w.state.LauncherConfigFile),
	)
	w.publishStatus(StatusOpen)
	w.publishConfig()
	if w.cfg.UI.AutoStart {
		w.startDaemon(w.cfg.UI.OpenBrowser)
	}
}

func (w *Worker) handleCreateFolderAndOpen() {
	if w.state.VaultPath == "" {
		return
	}
	if err := os.MkdirAll(w.state.VaultPath, 0o755); err != nil {
		logging.ErrorWithContext(w.logger, "vault folder could not be created", "vault_create_folder_failed",
			logging.String(logging.FieldVaultPath, w.state.VaultPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions of the parent directory"),
		)
		w.publishOpenError(OpenErrorCreateFolder, err)
		return
	}
	w.tryOpenVault()
}

func (w *Worker) handleForceOpenVault() {
	if w.state.VaultPath == "" {
		return
	}
	if err := vaultlock.Remove(w.state.VaultPath); err != nil {
		w.logger.Debug("stale lock removal failed", logging.Error(err))
	}
	logging.WarnWithContext(w.logger, "vault lock overridden", "vault_lock_forced",
		logging.String(logging.FieldVaultPath, w.state.VaultPath),
		logging.String(logging.FieldImpact, "a second launcher using this vault could corrupt it"),
	)
	w.tryOpenVault()
}

func (w *Worker) handleSetInitialConfig(m SetInitialConfig) {
	if !w.requireVault("set_initial_config") {
		return
	}
	w.state.LauncherConfig.Hostname = m.Hostname
	w.state.LauncherConfig.Port = m.Port
	w.state.LauncherConfig.Local = m.Local
	if err := vaultconfig.Save(w.state.LauncherConfigFile, w.state.LauncherConfig); err != nil {
		logging.ErrorWithContext(w.logger, "launcher config save failed", "launcher_config_save_failed",
			logging.String("path", w.state.LauncherConfigFile),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions of the launcher config directory"),
		)
		w.publishOpenError(OpenErrorSaveConfig, err)
		w.Send(CloseVault{})
		return
	}
	w.publishStatus(StatusOpening)
	w.openVault()
}

// handleCreateVault initialises an empty vault through the daemon binary.
func (w *Worker) handleCreateVault(m CreateVault) {
	if !w.requireVault("create_vault") {
		return
	}
	w.publishStatus(StatusOpening)

	cmd := exec.CommandContext(w.runCtx, w.state.DaemonBinary, "--init", "--skip-lock", "--vault-path", w.state.VaultPath)
	cmd.Env = append(os.Environ(), "PMV_INIT_SET_USER="+m.Username, "PMV_INIT_SET_PASSWORD="+m.Password)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		if detail, ok := tools.FindError(output.String()); ok {
			err = errors.New(detail)
		}
		logging.ErrorWithContext(w.logger, "vault initialisation failed", "vault_init_failed",
			logging.String(logging.FieldVaultPath, w.state.VaultPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the daemon output with --init run manually"),
		)
		w.publishOpenError(OpenErrorInit, err)
		return
	}
	w.logger.Info("vault initialised",
		logging.String(logging.FieldEventType, "vault_initialised"),
		logging.String(logging.FieldVaultPath, w.state.VaultPath),
	)
	w.openVault()
}

func (w *Worker) handleCloseVault() {
	w.closeVault()
	w.publishStatus(StatusClosed)
}

// closeVault stops everything bound to the open vault and drops its lock.
func (w *Worker) closeVault() {
	if w.tools.Running() {
		w.tools.Cancel()
		w.sink.Publish(ToolStatusChanged{Status: TaskIdle, Tool: w.state.Tool})
	}
	w.stopDaemon()
	if !w.state.VaultOpen() {
		return
	}
	if err := w.state.releaseVault(); err != nil {
		w.logger.Debug("vault lock release failed", logging.Error(err))
	}
	w.logger.Info("vault closed",
		logging.String(logging.FieldEventType, "vault_closed"),
		logging.String(logging.FieldVaultPath, w.state.VaultPath),
	)
}

func (w *Worker) pick(target PickTarget) {
	if w.picker == nil {
		w.logger.Debug("no path picker available", logging.String("target", string(target)))
		return
	}
	ctx := w.runCtx
	go func() {
		path, ok, err := w.picker.Pick(ctx, target)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.Warn("path picker failed",
					logging.String("target", string(target)),
					logging.Error(err),
					logging.String(logging.FieldEventType, "picker_failed"),
				)
			}
			return
		}
		if !ok || strings.TrimSpace(path) == "" {
			return
		}
		w.Send(PathSelected{Target: target, Path: path})
	}()
}

func (w *Worker) handlePathSelected(m PathSelected) {
	switch m.Target {
	case PickVaultFolder:
		w.handleOpenVault(OpenVault{Path: m.Path})
		return
	case PickBackupPath:
		w.state.BackupPath = m.Path
	}
	w.sink.Publish(PathChosen{Target: m.Target, Path: m.Path})
}
