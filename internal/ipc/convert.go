package ipc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"

	"vaultlauncher/internal/config"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/worker"
)

func statusFromSnapshot(snap worker.Snapshot) StatusResponse {
	resp := StatusResponse{
		Launcher:  string(snap.Launcher),
		VaultPath: snap.VaultPath,
		Daemon:    daemonFromSnapshot(snap),
		Config:    configFromSnapshot(snap),
		Backup:    backupFromSnapshot(snap),
		Tool:      toolFromSnapshot(snap),
		Locale:    snap.Settings.Locale,
		Theme:     snap.Settings.Theme,
	}
	if snap.OpenError.Kind != "" {
		resp.OpenError = &Problem{Kind: string(snap.OpenError.Kind), Detail: snap.OpenError.Detail}
	}
	if snap.Fatal.Kind != "" {
		resp.Fatal = &Problem{Kind: string(snap.Fatal.Kind), Detail: snap.Fatal.Detail}
	}
	return resp
}

func daemonFromSnapshot(snap worker.Snapshot) DaemonState {
	d := snap.Daemon
	state := DaemonState{
		Status:  string(d.Status),
		URL:     d.URL,
		LogFile: d.LogFile,
		Detail:  d.Detail,
	}
	if d.Status == worker.DaemonStatusError {
		state.ErrorKind = string(d.ErrKind)
	}
	return state
}

func configFromSnapshot(snap worker.Snapshot) *LauncherConfig {
	c := snap.Config
	if c == (worker.ConfigSnapshot{}) {
		return nil
	}
	return &LauncherConfig{
		Hostname:    c.Launcher.Hostname,
		Port:        c.Launcher.Port,
		Local:       c.Launcher.Local,
		TLSCert:     c.Launcher.SSLCert,
		TLSKey:      c.Launcher.SSLKey,
		CacheSize:   c.Launcher.CacheSize,
		LogRequests: c.Launcher.LogRequests,
		Debug:       c.Launcher.Debug,
		FFmpegPath:  c.FFmpeg.FFmpegPath,
		FFprobePath: c.FFmpeg.FFprobePath,
		VideoCodec:  c.FFmpeg.VideoCodec,
	}
}

func backupFromSnapshot(snap worker.Snapshot) BackupState {
	b := snap.Backup
	status := string(b.Status)
	if status == "" {
		status = string(worker.TaskIdle)
	}
	state := BackupState{
		Status: status,
		Path:   b.Path,
		Files:  b.Summary.Files,
		Bytes:  b.Summary.Bytes,
		Detail: b.Detail,
	}
	if b.Status == worker.TaskError {
		state.ErrorKind = string(b.ErrKind)
	}
	if b.Status == worker.TaskRunning {
		p := snap.Progress
		state.Progress = &BackupProgress{
			Phase:         p.Phase.String(),
			Indeterminate: p.Indeterminate,
			FilesDone:     p.FilesDone,
			FilesTotal:    p.FilesTotal,
			BytesDone:     p.BytesDone,
			BytesTotal:    p.BytesTotal,
			CurrentFile:   p.CurrentFile,
		}
	}
	return state
}

func toolFromSnapshot(snap worker.Snapshot) ToolState {
	status := string(snap.Tool.Status)
	if status == "" {
		status = string(worker.TaskIdle)
	}
	return ToolState{Status: status, Tool: string(snap.Tool.Tool), Detail: snap.Tool.Detail}
}

// HistoryRuns converts stored runs to their wire form.
func HistoryRuns(runs []*history.Run) []HistoryRun {
	out := make([]HistoryRun, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		out = append(out, HistoryRun{
			ID:           run.ID,
			VaultPath:    run.VaultPath,
			BackupPath:   run.BackupPath,
			Trigger:      string(run.Trigger),
			Status:       string(run.Status),
			Files:        run.Files,
			Bytes:        run.Bytes,
			ErrorKind:    run.ErrorKind,
			ErrorMessage: run.ErrorMessage,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
		})
	}
	return out
}

// parseKey decodes a hex vault key. Spaces and dashes are ignored so keys
// copied in groups still parse.
func parseKey(raw string) ([]byte, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "\n", "", "\t", "").Replace(raw)
	if cleaned == "" {
		return nil, errors.New("recovery requires a key")
	}
	key, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("key must be hexadecimal: %w", err)
	}
	return key, nil
}

type configPlan struct {
	messages   []worker.Message
	settings   *worker.SetUserSettings
	needsVault bool
}

// planConfigUpdate turns a partial update into worker messages. Unset
// fields keep the values in snap.
func planConfigUpdate(snap worker.Snapshot, req UpdateConfigRequest) (configPlan, error) {
	var plan configPlan
	current := snap.Config.Launcher

	if req.Hostname != nil || req.Port != nil || req.Local != nil {
		msg := worker.UpdateHostPort{Hostname: current.Hostname, Port: current.Port, Local: current.Local}
		if req.Hostname != nil {
			msg.Hostname = strings.TrimSpace(*req.Hostname)
		}
		if req.Port != nil {
			msg.Port = *req.Port
		}
		if req.Local != nil {
			msg.Local = *req.Local
		}
		if msg.Port < 1 || msg.Port > 65535 {
			return plan, fmt.Errorf("port %d out of range", msg.Port)
		}
		if msg.Hostname == "" {
			return plan, errors.New("hostname must not be empty")
		}
		plan.messages = append(plan.messages, msg)
		plan.needsVault = true
	}

	if req.TLS != nil || req.TLSCert != nil || req.TLSKey != nil {
		msg := worker.UpdateTLS{Cert: current.SSLCert, Key: current.SSLKey}
		if req.TLSCert != nil {
			msg.Cert = expand(*req.TLSCert)
		}
		if req.TLSKey != nil {
			msg.Key = expand(*req.TLSKey)
		}
		msg.Enabled = msg.Cert != "" && msg.Key != ""
		if req.TLS != nil {
			msg.Enabled = *req.TLS
		}
		if msg.Enabled && (msg.Cert == "" || msg.Key == "") {
			return plan, errors.New("tls requires both a certificate and a key")
		}
		plan.messages = append(plan.messages, msg)
		plan.needsVault = true
	}

	if req.CacheSize != nil || req.LogRequests != nil || req.Debug != nil {
		msg := worker.UpdateOther{CacheSize: current.CacheSize, LogRequests: current.LogRequests, Debug: current.Debug}
		if req.CacheSize != nil {
			msg.CacheSize = *req.CacheSize
		}
		if req.LogRequests != nil {
			msg.LogRequests = *req.LogRequests
		}
		if req.Debug != nil {
			msg.Debug = *req.Debug
		}
		plan.messages = append(plan.messages, msg)
		plan.needsVault = true
	}

	if req.FFmpegPath != nil || req.FFprobePath != nil || req.VideoCodec != nil {
		ff := snap.Config.FFmpeg
		msg := worker.UpdateFFmpeg{FFmpegPath: ff.FFmpegPath, FFprobePath: ff.FFprobePath, VideoCodec: ff.VideoCodec}
		if req.FFmpegPath != nil {
			msg.FFmpegPath = expand(*req.FFmpegPath)
		}
		if req.FFprobePath != nil {
			msg.FFprobePath = expand(*req.FFprobePath)
		}
		if req.VideoCodec != nil {
			msg.VideoCodec = strings.TrimSpace(*req.VideoCodec)
		}
		if msg.FFmpegPath == "" || msg.FFprobePath == "" {
			return plan, errors.New("ffmpeg and ffprobe paths must not be empty")
		}
		plan.messages = append(plan.messages, msg)
	}

	if req.Locale != nil || req.Theme != nil {
		next := worker.SetUserSettings{Locale: snap.Settings.Locale, Theme: snap.Settings.Theme}
		if req.Locale != nil {
			next.Locale = strings.TrimSpace(*req.Locale)
		}
		if req.Theme != nil {
			next.Theme = strings.TrimSpace(*req.Theme)
		}
		if !slices.Contains(config.Locales, next.Locale) {
			return plan, fmt.Errorf("unsupported locale %q", next.Locale)
		}
		if !slices.Contains(config.Themes, next.Theme) {
			return plan, fmt.Errorf("unsupported theme %q", next.Theme)
		}
		plan.settings = &next
	}
	return plan, nil
}

func expand(path string) string {
	path = strings.TrimSpace(path)
	if expanded, err := config.ExpandPath(path); err == nil {
		return expanded
	}
	return path
}
