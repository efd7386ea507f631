package vaultconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"

	"vaultlauncher/internal/fileutil"
)

const (
	// DefaultCacheSize is the daemon cache budget when none is configured.
	DefaultCacheSize = 1024
	// DefaultHostname and DefaultPort seed the initial configuration prompt.
	DefaultHostname = "localhost"
	DefaultPort     = 8000
	// VaultFileName is the legacy config location inside the vault itself.
	VaultFileName = "launcher.config.json"
)

// LauncherConfig is the persisted per-vault configuration.
type LauncherConfig struct {
	Path        string `json:"path"`
	Hostname    string `json:"hostname"`
	Port        int    `json:"port"`
	Local       bool   `json:"local"`
	SSLCert     string `json:"ssl_cert"`
	SSLKey      string `json:"ssl_key"`
	CacheSize   int    `json:"cache_size"`
	LogRequests bool   `json:"log_requests"`
	Debug       bool   `json:"debug"`
}

// New returns an unconfigured LauncherConfig. Port 0 marks it as needing
// initial configuration.
func New() LauncherConfig {
	return LauncherConfig{CacheSize: DefaultCacheSize}
}

// HasTLS reports whether both certificate and key are set.
func (c LauncherConfig) HasTLS() bool {
	return c.SSLCert != "" && c.SSLKey != ""
}

// Configured reports whether the initial host/port setup has happened.
func (c LauncherConfig) Configured() bool {
	return c.Port != 0
}

func (c LauncherConfig) scheme() string {
	if c.HasTLS() {
		return "https"
	}
	return "http"
}

// HealthCheckURL is the local endpoint the daemon answers once it is ready.
func (c LauncherConfig) HealthCheckURL(launchTag string) string {
	return fmt.Sprintf("%s://localhost:%d/api/admin/launcher/%s", c.scheme(), c.Port, launchTag)
}

// BrowserURL is the address a user opens to reach the vault.
func (c LauncherConfig) BrowserURL() string {
	host := strings.TrimSpace(c.Hostname)
	if host == "" {
		host = DefaultHostname
	}
	scheme := c.scheme()
	if (scheme == "https" && c.Port == 443) || (scheme == "http" && c.Port == 80) {
		return scheme + "://" + host
	}
	return scheme + "://" + host + ":" + strconv.Itoa(c.Port)
}

// Load reads path. A missing or unreadable file yields New() and the error.
func Load(path string) (LauncherConfig, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return New(), fmt.Errorf("parse launcher config %s: %w", path, err)
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg LauncherConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode launcher config: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write launcher config: %w", err)
	}
	return nil
}

// PathTag derives the per-vault file stem: the lowercase hex SHA-256 of the
// vault path from the 32nd hex digit on.
func PathTag(vaultPath string) string {
	sum := sha256.Sum256([]byte(vaultPath))
	return hex.EncodeToString(sum[:])[31:]
}

// Resolve returns the config file to use for vaultPath. The per-user file
// under configDir is preferred; when it does not exist yet but the vault
// carries a legacy launcher.config.json, that file is copied over first. If
// configDir cannot be created, the legacy path is returned.
func Resolve(configDir, vaultPath string) string {
	general := filepath.Join(vaultPath, VaultFileName)
	if strings.TrimSpace(configDir) == "" {
		return general
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return general
	}
	specific := filepath.Join(configDir, PathTag(vaultPath)+".json")

	if !exists(specific) && exists(general) {
		_ = fileutil.CopyFile(general, specific)
	}
	return specific
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
