package ipc

import "time"

// StatusRequest fetches the launcher state.
type StatusRequest struct{}

// Problem is a classified failure.
type Problem struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// DaemonState describes the supervised vault daemon.
type DaemonState struct {
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	LogFile   string `json:"log_file,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// LauncherConfig is the per-vault configuration plus the shared media tools.
type LauncherConfig struct {
	Hostname    string `json:"hostname"`
	Port        int    `json:"port"`
	Local       bool   `json:"local"`
	TLSCert     string `json:"tls_cert,omitempty"`
	TLSKey      string `json:"tls_key,omitempty"`
	CacheSize   int    `json:"cache_size"`
	LogRequests bool   `json:"log_requests"`
	Debug       bool   `json:"debug"`
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
	VideoCodec  string `json:"video_codec"`
}

// BackupProgress mirrors the latest backup progress snapshot.
type BackupProgress struct {
	Phase         string `json:"phase"`
	Indeterminate bool   `json:"indeterminate"`
	FilesDone     int64  `json:"files_done"`
	FilesTotal    int64  `json:"files_total"`
	BytesDone     int64  `json:"bytes_done"`
	BytesTotal    int64  `json:"bytes_total"`
	CurrentFile   string `json:"current_file,omitempty"`
}

// BackupState describes the latest backup run.
type BackupState struct {
	Status    string          `json:"status"`
	Path      string          `json:"path,omitempty"`
	Files     int64           `json:"files"`
	Bytes     int64           `json:"bytes"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Progress  *BackupProgress `json:"progress,omitempty"`
}

// ToolState describes the latest maintenance tool run.
type ToolState struct {
	Status string `json:"status"`
	Tool   string `json:"tool,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse is the launcher state as seen by presentation layers.
type StatusResponse struct {
	PID       int             `json:"pid"`
	Launcher  string          `json:"launcher"`
	VaultPath string          `json:"vault_path,omitempty"`
	OpenError *Problem        `json:"open_error,omitempty"`
	Fatal     *Problem        `json:"fatal,omitempty"`
	Daemon    DaemonState     `json:"daemon"`
	Config    *LauncherConfig `json:"config,omitempty"`
	Backup    BackupState     `json:"backup"`
	Tool      ToolState       `json:"tool"`
	Locale    string          `json:"locale,omitempty"`
	Theme     string          `json:"theme,omitempty"`
}

// OpenRequest opens a vault. The optional fields answer the questions the
// launcher asks along the way; a question left unanswered ends the request
// with that status.
type OpenRequest struct {
	Path string `json:"path"`
	// Create makes a missing vault folder.
	Create bool `json:"create"`
	// Force overrides a lock held by another launcher.
	Force bool `json:"force"`
	// Hostname, Port and Local are the initial configuration. Port 0 leaves
	// it unanswered.
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
	Local    bool   `json:"local"`
	// Username and Password initialise an empty vault.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// OpenResponse reports where opening stopped.
type OpenResponse struct {
	Status    string   `json:"status"`
	VaultPath string   `json:"vault_path"`
	Error     *Problem `json:"error,omitempty"`
}

// CloseRequest closes the open vault.
type CloseRequest struct{}

// CloseResponse reports the launcher status after closing.
type CloseResponse struct {
	Status string `json:"status"`
}

// StartRequest starts or restarts the vault daemon.
type StartRequest struct {
	OpenBrowser bool `json:"open_browser"`
}

// StartResponse reports the daemon state once it settled.
type StartResponse struct {
	Daemon DaemonState `json:"daemon"`
}

// StopRequest stops the vault daemon.
type StopRequest struct{}

// StopResponse reports the daemon state after stopping.
type StopResponse struct {
	Daemon DaemonState `json:"daemon"`
}

// BackupRequest runs a backup. An empty Path uses the remembered destination.
type BackupRequest struct {
	Path string `json:"path,omitempty"`
	// Wait blocks until the run ends instead of returning once it started.
	Wait bool `json:"wait"`
}

// BackupResponse reports the backup state.
type BackupResponse struct {
	Backup BackupState `json:"backup"`
}

// CancelBackupRequest cancels the running backup.
type CancelBackupRequest struct{}

// CancelBackupResponse reports whether a backup was running.
type CancelBackupResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ExportKeyRequest decrypts the vault key with an account password.
type ExportKeyRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Copy places the key on the launcher host clipboard.
	Copy bool `json:"copy"`
}

// ExportKeyResponse carries the key as upper-case hex.
type ExportKeyResponse struct {
	Key   string   `json:"key,omitempty"`
	Error *Problem `json:"error,omitempty"`
}

// RecoverKeyRequest replaces the vault credentials with a single account
// protecting Key (hex).
type RecoverKeyRequest struct {
	Key      string `json:"key"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RecoverKeyResponse reports the recovery outcome.
type RecoverKeyResponse struct {
	Recovered bool     `json:"recovered"`
	Error     *Problem `json:"error,omitempty"`
}

// RunToolRequest runs a maintenance tool against the open vault.
type RunToolRequest struct {
	Tool     string `json:"tool"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Wait     bool   `json:"wait"`
}

// RunToolResponse reports the tool state.
type RunToolResponse struct {
	Tool ToolState `json:"tool"`
}

// CancelToolRequest cancels the running tool.
type CancelToolRequest struct{}

// CancelToolResponse reports whether a tool was running.
type CancelToolResponse struct {
	Cancelled bool `json:"cancelled"`
}

// UpdateConfigRequest changes settings. Nil fields keep their value.
type UpdateConfigRequest struct {
	Hostname    *string `json:"hostname,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Local       *bool   `json:"local,omitempty"`
	TLS         *bool   `json:"tls,omitempty"`
	TLSCert     *string `json:"tls_cert,omitempty"`
	TLSKey      *string `json:"tls_key,omitempty"`
	CacheSize   *int    `json:"cache_size,omitempty"`
	LogRequests *bool   `json:"log_requests,omitempty"`
	Debug       *bool   `json:"debug,omitempty"`
	FFmpegPath  *string `json:"ffmpeg_path,omitempty"`
	FFprobePath *string `json:"ffprobe_path,omitempty"`
	VideoCodec  *string `json:"video_codec,omitempty"`
	Locale      *string `json:"locale,omitempty"`
	Theme       *string `json:"theme,omitempty"`
}

// UpdateConfigResponse returns the configuration after the update.
type UpdateConfigResponse struct {
	Config *LauncherConfig `json:"config,omitempty"`
	Locale string          `json:"locale,omitempty"`
	Theme  string          `json:"theme,omitempty"`
}

// HistoryRequest lists recent backup runs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryRun is one recorded backup run.
type HistoryRun struct {
	ID           int64     `json:"id"`
	VaultPath    string    `json:"vault_path"`
	BackupPath   string    `json:"backup_path"`
	Trigger      string    `json:"trigger"`
	Status       string    `json:"status"`
	Files        int64     `json:"files"`
	Bytes        int64     `json:"bytes"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// HistoryResponse contains the newest runs first.
type HistoryResponse struct {
	Runs []HistoryRun `json:"runs"`
}

// TestNotificationRequest sends a test push notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the notification outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// FinishRequest shuts the launcher down.
type FinishRequest struct{}

// FinishResponse acknowledges the shutdown request.
type FinishResponse struct {
	Accepted bool `json:"accepted"`
}
