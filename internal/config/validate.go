package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateUI(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	if c.Logging.KeepDaemonLogs < 1 {
		return errors.New("logging.keep_daemon_logs must be >= 1")
	}
	return nil
}

func (c *Config) validateUI() error {
	if !slices.Contains(Locales, c.UI.Locale) {
		return fmt.Errorf("ui.locale: unsupported value %q", c.UI.Locale)
	}
	if !slices.Contains(Themes, c.UI.Theme) {
		return fmt.Errorf("ui.theme: unsupported value %q", c.UI.Theme)
	}
	return nil
}

func (c *Config) validateBackup() error {
	if c.Backup.Schedule == "" {
		return nil
	}
	if strings.TrimSpace(c.Backup.Path) == "" {
		return errors.New("backup.path must be set when backup.schedule is set")
	}
	if _, err := cron.ParseStandard(c.Backup.Schedule); err != nil {
		return fmt.Errorf("backup.schedule: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	if !strings.HasPrefix(c.Notifications.NtfyTopic, "http://") && !strings.HasPrefix(c.Notifications.NtfyTopic, "https://") {
		return errors.New("notifications.ntfy_topic must be a full http(s) URL")
	}
	return nil
}
