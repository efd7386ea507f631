package worker

import (
	"fmt"
	"strings"

	"vaultlauncher/internal/backup"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/supervisor"
	"vaultlauncher/internal/tools"
)

// Message is anything the worker mailbox accepts.
type Message interface {
	workerMessage()
}

// PickTarget identifies what a path picker is choosing.
type PickTarget string

const (
	PickVaultFolder PickTarget = "vault_folder"
	PickFFmpeg      PickTarget = "ffmpeg"
	PickFFprobe     PickTarget = "ffprobe"
	PickTLSCert     PickTarget = "tls_cert"
	PickTLSKey      PickTarget = "tls_key"
	PickBackupPath  PickTarget = "backup_path"
)

// Vault lifecycle.
type (
	SelectVaultFolder   struct{}
	OpenVault           struct{ Path string }
	CreateFolderAndOpen struct{}
	// ForceOpenVault removes a stale lock file and retries opening.
	ForceOpenVault   struct{}
	SetInitialConfig struct {
		Hostname string
		Port     int
		Local    bool
	}
	CreateVault struct {
		Username string
		Password string
	}
	CloseVault struct{}
)

// Daemon control and supervisor reports.
type (
	StartVault    struct {
		OpenBrowser bool
	}
	StopVault     struct{}
	DaemonStarted struct {
		Generation  uint64
		OpenBrowser bool
	}
	DaemonStartError struct {
		Generation uint64
		Err        *supervisor.ExitError
	}
	DaemonStopped struct {
		Generation uint64
		Err        *supervisor.ExitError
	}
	OpenBrowser struct{}
	OpenLogFile struct{}
)

// Launcher configuration.
type (
	ResetConfig    struct{}
	UpdateHostPort struct {
		Hostname string
		Port     int
		Local    bool
	}
	UpdateTLS struct {
		Enabled bool
		Cert    string
		Key     string
	}
	UpdateFFmpeg struct {
		FFmpegPath  string
		FFprobePath string
		VideoCodec  string
	}
	UpdateOther struct {
		CacheSize   int
		LogRequests bool
		Debug       bool
	}
	SetUserSettings struct {
		Locale string
		Theme  string
	}
)

// Path pickers.
type (
	SelectFFmpegBinary  struct{}
	SelectFFprobeBinary struct{}
	SelectTLSCert       struct{}
	SelectTLSKey        struct{}
	SelectBackupPath    struct{}
	PathSelected        struct {
		Target PickTarget
		Path   string
	}
)

// Backups.
type (
	RunBackup struct {
		// Path overrides the remembered backup destination when set.
		Path    string
		Trigger history.Trigger
	}
	CancelBackup struct{}
	BackupEnded  struct {
		TaskID    uint64
		HistoryID int64
		Summary   backup.Summary
		Err       error
	}
)

// Credentials.
type (
	ExportKey struct {
		Username string
		Password string
	}
	RecoverKey struct {
		Key      []byte
		Username string
		Password string
	}
)

// Maintenance tools.
type (
	RunTool struct {
		Tool     tools.Tool
		Username string
		Password string
	}
	CancelTool  struct{}
	ToolSuccess struct{ ToolID uint64 }
	ToolError   struct {
		ToolID uint64
		Detail string
	}
)

// Misc.
type (
	CopyToClipboard struct{ Text string }
	// Finish stops the worker after releasing everything it holds.
	Finish struct{}
)

func (SelectVaultFolder) workerMessage()   {}
func (OpenVault) workerMessage()           {}
func (CreateFolderAndOpen) workerMessage() {}
func (ForceOpenVault) workerMessage()      {}
func (SetInitialConfig) workerMessage()    {}
func (CreateVault) workerMessage()         {}
func (CloseVault) workerMessage()          {}
func (StartVault) workerMessage()          {}
func (StopVault) workerMessage()           {}
func (DaemonStarted) workerMessage()       {}
func (DaemonStartError) workerMessage()    {}
func (DaemonStopped) workerMessage()       {}
func (OpenBrowser) workerMessage()         {}
func (OpenLogFile) workerMessage()         {}
func (ResetConfig) workerMessage()         {}
func (UpdateHostPort) workerMessage()      {}
func (UpdateTLS) workerMessage()           {}
func (UpdateFFmpeg) workerMessage()        {}
func (UpdateOther) workerMessage()         {}
func (SetUserSettings) workerMessage()     {}
func (SelectFFmpegBinary) workerMessage()  {}
func (SelectFFprobeBinary) workerMessage() {}
func (SelectTLSCert) workerMessage()       {}
func (SelectTLSKey) workerMessage()        {}
func (SelectBackupPath) workerMessage()    {}
func (PathSelected) workerMessage()        {}
func (RunBackup) workerMessage()           {}
func (CancelBackup) workerMessage()        {}
func (BackupEnded) workerMessage()         {}
func (ExportKey) workerMessage()           {}
func (RecoverKey) workerMessage()          {}
func (RunTool) workerMessage()             {}
func (CancelTool) workerMessage()          {}
func (ToolSuccess) workerMessage()         {}
func (ToolError) workerMessage()           {}
func (CopyToClipboard) workerMessage()     {}
func (Finish) workerMessage()              {}

func messageName(msg Message) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", msg), "worker.")
}
