package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"vaultlauncher/internal/backup"
	"vaultlauncher/internal/cancellable"
	"vaultlauncher/internal/config"
	"vaultlauncher/internal/history"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/notifications"
)

const historyTimeout = 5 * time.Second

func (w *Worker) handleRunBackup(m RunBackup) {
	if !w.requireVault("backup") {
		return
	}
	path := strings.TrimSpace(m.Path)
	if path == "" {
		path = w.state.BackupPath
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	if path == "" {
		w.sink.Publish(BackupStatusChanged{
			Status:  TaskError,
			ErrKind: backup.KindUnknown,
			Detail:  "no backup destination configured",
		})
		return
	}

	w.cancelBackupTask()
	w.state.BackupPath = path
	if w.cfg.Backup.Path != path {
		w.cfg.Backup.Path = path
		w.saveAppConfig()
	}

	trigger := m.Trigger
	if trigger == "" {
		trigger = history.TriggerManual
	}
	historyID := w.beginHistory(path, trigger)

	w.state.BackupGeneration++
	id := w.state.BackupGeneration
	task := cancellable.New()
	w.state.Backup = task

	vaultPath := w.state.VaultPath
	logger := logging.NewComponentLogger(w.logger, "backup").With(logging.Generation(id))
	sampler := logging.NewProgressSampler(10)
	sink := backup.ProgressFunc(func(s backup.Snapshot) {
		w.sink.Publish(BackupProgress{Progress: s})
		percent := -1.0
		if !s.Indeterminate {
			percent = s.Fraction() * 100
		}
		if sampler.ShouldLog(percent, s.Phase.String()) {
			logger.Info("backup progress",
				logging.String(logging.FieldEventType, "backup_progress"),
				logging.String("phase", s.Phase.String()),
				logging.String("progress", s.Summary()),
			)
		}
	})

	w.logger.Info("backup requested",
		logging.String(logging.FieldEventType, "backup_requested"),
		logging.Generation(id),
		logging.String("backup_path", path),
		logging.String("trigger", string(trigger)),
	)
	w.sink.Publish(BackupStatusChanged{Status: TaskRunning, Path: path})

	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		summary, err := backup.Run(task, sink, vaultPath, path, backup.WithLogger(logger))
		// Queue the result before End so a pending Cancel returns with it
		// already in the mailbox.
		w.Send(BackupEnded{TaskID: id, HistoryID: historyID, Summary: summary, Err: err})
		task.End()
	}()
}

// cancelBackupTask cancels the running backup, waiting for it to stop. It
// reports whether one was running.
func (w *Worker) cancelBackupTask() bool {
	task := w.state.Backup
	if task == nil {
		return false
	}
	w.state.Backup = nil
	w.state.BackupGeneration++
	task.Cancel()
	return true
}

func (w *Worker) handleCancelBackup() {
	if !w.cancelBackupTask() {
		return
	}
	w.logger.Info("backup cancelled",
		logging.String(logging.FieldEventType, "backup_cancelled"),
	)
	w.sink.Publish(BackupStatusChanged{Status: TaskIdle, Path: w.state.BackupPath})
}

func (w *Worker) handleBackupEnded(m BackupEnded) {
	w.finishHistory(m)
	if m.TaskID != w.state.BackupGeneration {
		w.logger.Debug("stale backup result", logging.Generation(m.TaskID))
		return
	}
	w.state.Backup = nil

	if m.Err == nil {
		w.sink.Publish(BackupStatusChanged{Status: TaskSuccess, Path: w.state.BackupPath, Summary: m.Summary})
		w.notify(notifications.EventBackupCompleted, notifications.Payload{
			"vault":   w.state.VaultPath,
			"summary": m.Summary,
		})
		return
	}
	if errors.Is(m.Err, backup.ErrCancelled) {
		w.sink.Publish(BackupStatusChanged{Status: TaskIdle, Path: w.state.BackupPath})
		return
	}

	kind, detail := backupFailure(m.Err)
	logging.ErrorWithContext(w.logger, "backup failed", "backup_failed",
		logging.Generation(m.TaskID),
		logging.String("kind", string(kind)),
		logging.Error(m.Err),
		logging.String("backup_path", w.state.BackupPath),
		logging.String(logging.FieldErrorHint, backupErrorHint(kind)),
	)
	w.sink.Publish(BackupStatusChanged{
		Status:  TaskError,
		Path:    w.state.BackupPath,
		ErrKind: kind,
		Detail:  detail,
	})
	w.notify(notifications.EventBackupFailed, notifications.Payload{"vault": w.state.VaultPath, "error": m.Err})
}

func (w *Worker) beginHistory(backupPath string, trigger history.Trigger) int64 {
	if w.history == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	id, err := w.history.Begin(ctx, w.state.VaultPath, backupPath, trigger)
	if err != nil {
		logging.WarnWithContext(w.logger, "backup history unavailable", "history_begin_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run will not appear in backup history"),
		)
		return 0
	}
	return id
}

// finishHistory records the outcome of every run, stale or not.
func (w *Worker) finishHistory(m BackupEnded) {
	if w.history == nil || m.HistoryID == 0 {
		return
	}
	outcome := history.Outcome{
		Status: history.StatusSucceeded,
		Files:  m.Summary.Files,
		Bytes:  m.Summary.Bytes,
	}
	switch {
	case m.Err == nil:
	case errors.Is(m.Err, backup.ErrCancelled):
		outcome.Status = history.StatusCancelled
	default:
		kind, detail := backupFailure(m.Err)
		outcome.Status = history.StatusFailed
		outcome.ErrorKind = string(kind)
		outcome.ErrorMessage = detail
		if outcome.ErrorMessage == "" {
			outcome.ErrorMessage = m.Err.Error()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := w.history.Finish(ctx, m.HistoryID, outcome); err != nil {
		w.logger.Debug("backup history update failed",
			logging.Int64("history_id", m.HistoryID),
			logging.Error(err),
		)
	}
}

func backupFailure(err error) (backup.ErrorKind, string) {
	var backupErr *backup.Error
	if errors.As(err, &backupErr) {
		return backupErr.Kind, backupErr.Detail
	}
	return backup.KindUnknown, err.Error()
}

func backupErrorHint(kind backup.ErrorKind) string {
	switch kind {
	case backup.KindLocked:
		return "another backup is writing to this destination"
	case backup.KindNoEncryptedFiles:
		return "the vault folder holds no vault data"
	default:
		return "check free space and permissions of the backup destination"
	}
}
