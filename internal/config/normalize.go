package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBinaries(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeUI()
	if err := c.normalizeBackup(); err != nil {
		return err
	}
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	if strings.TrimSpace(c.Paths.LauncherConfigDir) == "" {
		c.Paths.LauncherConfigDir = defaultLauncherConfigDir()
	}
	if c.Paths.LauncherConfigDir, err = expandPath(c.Paths.LauncherConfigDir); err != nil {
		return fmt.Errorf("paths.launcher_config_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DefaultVault) == "" {
		c.Paths.DefaultVault = defaultVaultPath()
	}
	if c.Paths.DefaultVault, err = expandPath(c.Paths.DefaultVault); err != nil {
		return fmt.Errorf("paths.default_vault: %w", err)
	}
	return nil
}

func (c *Config) normalizeBinaries() error {
	if value, ok := os.LookupEnv("VAULTLAUNCHER_DAEMON"); ok && strings.TrimSpace(value) != "" {
		c.Binaries.Daemon = value
	}
	if value, ok := os.LookupEnv("VAULTLAUNCHER_FRONTEND"); ok && strings.TrimSpace(value) != "" {
		c.Binaries.Frontend = value
	}
	var err error
	if c.Binaries.Daemon, err = expandPath(strings.TrimSpace(c.Binaries.Daemon)); err != nil {
		return fmt.Errorf("binaries.daemon: %w", err)
	}
	if c.Binaries.Frontend, err = expandPath(strings.TrimSpace(c.Binaries.Frontend)); err != nil {
		return fmt.Errorf("binaries.frontend: %w", err)
	}
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	if c.FFmpeg.FFmpegPath == "" {
		if value, ok := os.LookupEnv("FFMPEG_PATH"); ok {
			c.FFmpeg.FFmpegPath = value
		}
	}
	if c.FFmpeg.FFprobePath == "" {
		if value, ok := os.LookupEnv("FFPROBE_PATH"); ok {
			c.FFmpeg.FFprobePath = value
		}
	}
	var err error
	if c.FFmpeg.FFmpegPath, err = expandPath(strings.TrimSpace(c.FFmpeg.FFmpegPath)); err != nil {
		return fmt.Errorf("ffmpeg.ffmpeg_path: %w", err)
	}
	if c.FFmpeg.FFprobePath, err = expandPath(strings.TrimSpace(c.FFmpeg.FFprobePath)); err != nil {
		return fmt.Errorf("ffmpeg.ffprobe_path: %w", err)
	}
	c.FFmpeg.VideoCodec = strings.TrimSpace(c.FFmpeg.VideoCodec)
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.KeepDaemonLogs == 0 {
		c.Logging.KeepDaemonLogs = defaultKeepDaemonLogs
	}
}

func (c *Config) normalizeUI() {
	c.UI.Locale = strings.ToLower(strings.TrimSpace(c.UI.Locale))
	c.UI.Theme = strings.ToLower(strings.TrimSpace(c.UI.Theme))
}

func (c *Config) normalizeBackup() error {
	c.Backup.Schedule = strings.TrimSpace(c.Backup.Schedule)
	var err error
	if c.Backup.Path, err = expandPath(strings.TrimSpace(c.Backup.Path)); err != nil {
		return fmt.Errorf("backup.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}
