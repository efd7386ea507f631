package worker

import (
	"vaultlauncher/internal/backup"
	"vaultlauncher/internal/config"
	"vaultlauncher/internal/supervisor"
	"vaultlauncher/internal/tools"
	"vaultlauncher/internal/vaultconfig"
)

// Event is published to the Sink.
type Event interface {
	workerEvent()
}

// Sink receives events. Publish is called from the worker goroutine and from
// backup goroutines, so implementations must be safe for concurrent use and
// must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// LauncherStatus is the vault-level state shown to the user.
type LauncherStatus string

const (
	StatusClosed         LauncherStatus = "closed"
	StatusCreateAsk      LauncherStatus = "create_ask"
	StatusLockAsk        LauncherStatus = "lock_ask"
	StatusInitialConfig  LauncherStatus = "initial_config"
	StatusCreateVaultAsk LauncherStatus = "create_vault_ask"
	StatusOpening        LauncherStatus = "opening"
	StatusOpen           LauncherStatus = "open"
	StatusOpenError      LauncherStatus = "open_error"
	StatusFatalError     LauncherStatus = "fatal_error"
)

// OpenErrorKind classifies failures while opening a vault.
type OpenErrorKind string

const (
	OpenErrorCreateFolder OpenErrorKind = "create_folder"
	OpenErrorSaveConfig   OpenErrorKind = "save_config"
	OpenErrorInit         OpenErrorKind = "init"
)

// FatalKind names a missing program found at startup.
type FatalKind string

const (
	FatalDaemonMissing   FatalKind = "daemon_missing"
	FatalFrontendMissing FatalKind = "frontend_missing"
	FatalFFmpegMissing   FatalKind = "ffmpeg_missing"
	FatalFFprobeMissing  FatalKind = "ffprobe_missing"
)

// DaemonStatus is the supervised daemon state.
type DaemonStatus string

const (
	DaemonStatusStopped  DaemonStatus = "stopped"
	DaemonStatusStarting DaemonStatus = "starting"
	DaemonStatusRunning  DaemonStatus = "running"
	DaemonStatusStopping DaemonStatus = "stopping"
	DaemonStatusError    DaemonStatus = "error"
)

// TaskStatus is the state of a backup, key or tool operation.
type TaskStatus string

const (
	TaskIdle    TaskStatus = "idle"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// KeyOp names a credential operation.
type KeyOp string

const (
	KeyOpExport  KeyOp = "export"
	KeyOpRecover KeyOp = "recover"
)

// KeyErrorKind classifies credential operation failures.
type KeyErrorKind string

const (
	KeyErrorInvalidUser      KeyErrorKind = "invalid_user"
	KeyErrorInvalidPassword  KeyErrorKind = "invalid_password"
	KeyErrorInvalidKey       KeyErrorKind = "invalid_key"
	KeyErrorNoEncryptedFiles KeyErrorKind = "no_encrypted_files"
	KeyErrorUnknown          KeyErrorKind = "unknown"
)

// LauncherStatusChanged reports a new vault-level state.
type LauncherStatusChanged struct {
	Status    LauncherStatus
	VaultPath string
}

// OpenFailed reports why a vault could not be opened.
type OpenFailed struct {
	Kind   OpenErrorKind
	Detail string
}

// FatalError reports a missing program. The worker ignores everything but
// Finish afterwards.
type FatalError struct {
	Kind   FatalKind
	Detail string
}

// DaemonStatusChanged reports daemon lifecycle changes.
type DaemonStatusChanged struct {
	Status  DaemonStatus
	URL     string
	LogFile string
	// ErrKind and Detail are set with DaemonStatusError.
	ErrKind supervisor.ErrorKind
	Detail  string
}

// ConfigSnapshot carries the settings a configuration form should show.
type ConfigSnapshot struct {
	Launcher vaultconfig.LauncherConfig
	FFmpeg   config.FFmpeg
}

// BackupProgress is published by the backup goroutine, throttled.
type BackupProgress struct {
	Progress backup.Snapshot
}

// BackupStatusChanged reports backup lifecycle changes.
type BackupStatusChanged struct {
	Status  TaskStatus
	Path    string
	Summary backup.Summary
	ErrKind backup.ErrorKind
	Detail  string
}

// KeyResult reports the outcome of ExportKey or RecoverKey.
type KeyResult struct {
	Op     KeyOp
	Status TaskStatus
	// Key is the upper-case hex key on a successful export.
	Key    string
	Kind   KeyErrorKind
	Detail string
}

// ToolStatusChanged reports maintenance tool lifecycle changes.
type ToolStatusChanged struct {
	Status TaskStatus
	Tool   tools.Tool
	Detail string
}

// PathChosen reports a picker selection for a form field.
type PathChosen struct {
	Target PickTarget
	Path   string
}

// UserSettingsChanged reports saved locale and theme.
type UserSettingsChanged struct {
	Locale string
	Theme  string
}

func (LauncherStatusChanged) workerEvent() {}
func (OpenFailed) workerEvent()            {}
func (FatalError) workerEvent()            {}
func (DaemonStatusChanged) workerEvent()   {}
func (ConfigSnapshot) workerEvent()        {}
func (BackupProgress) workerEvent()        {}
func (BackupStatusChanged) workerEvent()   {}
func (KeyResult) workerEvent()             {}
func (ToolStatusChanged) workerEvent()     {}
func (PathChosen) workerEvent()            {}
func (UserSettingsChanged) workerEvent()   {}
