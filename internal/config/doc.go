// Package config loads, normalizes, and validates the launcher's own settings.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files and honours environment fallbacks such as VAULTLAUNCHER_DAEMON
// and FFMPEG_PATH. Per-vault daemon settings (host, port, TLS) live in the
// vaultconfig package instead, because the daemon reads them too.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
