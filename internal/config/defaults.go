package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigPath          = "~/.config/vaultlauncher/config.toml"
	defaultLogDir              = "~/.local/share/vaultlauncher/logs"
	defaultStateDir            = "~/.local/share/vaultlauncher"
	defaultSocketPath          = "~/.local/share/vaultlauncher/launcher.sock"
	defaultDaemonBinary        = "/usr/bin/pmvd"
	defaultFrontendDir         = "/usr/lib/pmv/www"
	defaultFFmpegPath          = "/usr/bin/ffmpeg"
	defaultFFprobePath         = "/usr/bin/ffprobe"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultKeepDaemonLogs      = 100
	defaultNotifyTimeout       = 10
	defaultLauncherConfigChild = "launcher_config"
	vendorConfigDir            = "PersonalMediaVault"
)

// Locales lists the accepted ui.locale values; empty means system default.
var Locales = []string{"", "en", "es"}

// Themes lists the accepted ui.theme values; empty means system default.
var Themes = []string{"", "dark", "light"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:            defaultLogDir,
			StateDir:          defaultStateDir,
			SocketPath:        defaultSocketPath,
			LauncherConfigDir: defaultLauncherConfigDir(),
			DefaultVault:      defaultVaultPath(),
		},
		Binaries: Binaries{
			Daemon:   defaultDaemonBinary,
			Frontend: defaultFrontendDir,
		},
		FFmpeg: FFmpeg{
			FFmpegPath:  defaultFFmpegPath,
			FFprobePath: defaultFFprobePath,
		},
		Logging: Logging{
			Format:         defaultLogFormat,
			Level:          defaultLogLevel,
			RetentionDays:  defaultLogRetentionDays,
			KeepDaemonLogs: defaultKeepDaemonLogs,
		},
		UI: UI{
			AutoStart:   true,
			OpenBrowser: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Backup:         true,
			Daemon:         true,
			Errors:         true,
		},
	}
}

func userConfigBase() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir
	}
	return "~/.config"
}

func defaultLauncherConfigDir() string {
	return filepath.Join(userConfigBase(), vendorConfigDir, defaultLauncherConfigChild)
}

func defaultVaultPath() string {
	return filepath.Join(userConfigBase(), vendorConfigDir, "vault")
}
