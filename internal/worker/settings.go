package worker

import (
	"slices"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/vaultconfig"
)

func (w *Worker) publishConfig() {
	w.sink.Publish(ConfigSnapshot{Launcher: w.state.LauncherConfig, FFmpeg: w.state.FFmpeg})
}

func (w *Worker) saveLauncherConfig() {
	if err := vaultconfig.Save(w.state.LauncherConfigFile, w.state.LauncherConfig); err != nil {
		logging.ErrorWithContext(w.logger, "launcher config save failed", "launcher_config_save_failed",
			logging.String("path", w.state.LauncherConfigFile),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions of the launcher config directory"),
		)
	}
}

func (w *Worker) saveAppConfig() {
	if w.configPath == "" {
		w.logger.Debug("no config path; settings kept in memory only")
		return
	}
	if err := config.Save(w.configPath, w.cfg); err != nil {
		logging.ErrorWithContext(w.logger, "config save failed", "config_save_failed",
			logging.String("path", w.configPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions of the config file"),
		)
	}
}

// applyLauncherConfig persists the per-vault config and restarts the daemon
// so it picks the change up.
func (w *Worker) applyLauncherConfig() {
	w.saveLauncherConfig()
	w.publishConfig()
	w.startDaemon(false)
}

func (w *Worker) handleUpdateHostPort(m UpdateHostPort) {
	if !w.requireVault("update_host_port") {
		return
	}
	w.state.LauncherConfig.Hostname = m.Hostname
	w.state.LauncherConfig.Port = m.Port
	w.state.LauncherConfig.Local = m.Local
	w.applyLauncherConfig()
}

func (w *Worker) handleUpdateTLS(m UpdateTLS) {
	if !w.requireVault("update_tls") {
		return
	}
	if m.Enabled {
		w.state.LauncherConfig.SSLCert = m.Cert
		w.state.LauncherConfig.SSLKey = m.Key
	} else {
		w.state.LauncherConfig.SSLCert = ""
		w.state.LauncherConfig.SSLKey = ""
	}
	w.applyLauncherConfig()
}

func (w *Worker) handleUpdateOther(m UpdateOther) {
	if !w.requireVault("update_other") {
		return
	}
	cacheSize := m.CacheSize
	if cacheSize <= 0 {
		cacheSize = vaultconfig.DefaultCacheSize
	}
	w.state.LauncherConfig.CacheSize = cacheSize
	w.state.LauncherConfig.LogRequests = m.LogRequests
	w.state.LauncherConfig.Debug = m.Debug
	w.applyLauncherConfig()
}

// handleUpdateFFmpeg changes the media tools for every vault.
func (w *Worker) handleUpdateFFmpeg(m UpdateFFmpeg) {
	w.state.FFmpeg = config.FFmpeg{
		FFmpegPath:  m.FFmpegPath,
		FFprobePath: m.FFprobePath,
		VideoCodec:  m.VideoCodec,
	}
	w.cfg.FFmpeg = w.state.FFmpeg
	w.saveAppConfig()
	w.publishConfig()
	if w.state.VaultOpen() {
		w.startDaemon(false)
	}
}

// handleSetUserSettings saves locale and theme when either changed. Unknown
// values fall back to the system default.
func (w *Worker) handleSetUserSettings(m SetUserSettings) {
	next := UserSettings{Locale: m.Locale, Theme: m.Theme}
	if !slices.Contains(config.Locales, next.Locale) {
		next.Locale = ""
	}
	if !slices.Contains(config.Themes, next.Theme) {
		next.Theme = ""
	}
	if next == w.state.UserSettings {
		return
	}
	w.state.UserSettings = next
	w.cfg.UI.Locale = next.Locale
	w.cfg.UI.Theme = next.Theme
	w.saveAppConfig()
	w.sink.Publish(UserSettingsChanged{Locale: next.Locale, Theme: next.Theme})
}

func (w *Worker) handleCopyToClipboard(m CopyToClipboard) {
	if w.clipboard == nil {
		w.logger.Debug("no clipboard available")
		return
	}
	if err := w.clipboard.WriteText(m.Text); err != nil {
		logging.WarnWithContext(w.logger, "clipboard write failed", "clipboard_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "copy the value manually"),
		)
	}
}
