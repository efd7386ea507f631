package worker

import (
	"vaultlauncher/internal/cancellable"
	"vaultlauncher/internal/config"
	"vaultlauncher/internal/tools"
	"vaultlauncher/internal/vaultconfig"
	"vaultlauncher/internal/vaultlock"
)

// State is the session state owned by the worker goroutine. Nothing outside
// the handlers reads or writes it.
type State struct {
	DaemonBinary string
	FrontendPath string
	FFmpeg       config.FFmpeg

	VaultPath          string
	VaultLock          *vaultlock.Lock
	LauncherConfigFile string
	LauncherConfig     vaultconfig.LauncherConfig

	Backup           *cancellable.Controller
	BackupGeneration uint64
	BackupPath       string

	Tool tools.Tool

	UserSettings UserSettings
	Fatal        FatalKind
}

// UserSettings are the presentation preferences persisted in the app config.
type UserSettings struct {
	Locale string
	Theme  string
}

// VaultOpen reports whether a vault lock is held.
func (s *State) VaultOpen() bool {
	return s.VaultLock != nil
}

func (s *State) releaseVault() error {
	lock := s.VaultLock
	s.VaultLock = nil
	return lock.Release()
}
