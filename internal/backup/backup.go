package backup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"vaultlauncher/internal/cancellable"
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/vaultlock"
)

// Summary describes a completed backup.
type Summary struct {
	Files int64
	Bytes int64
}

// Option customises a run.
type Option func(*run)

// WithClock overrides the time source used for progress throttling.
func WithClock(now func() time.Time) Option {
	return func(r *run) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type run struct {
	task       *cancellable.Controller
	vaultPath  string
	backupPath string
	logger     *slog.Logger
	now        func() time.Time
	progress   *progress
}

// Run backs up vaultPath into backupPath. It returns a Summary on success,
// ErrCancelled when task was cancelled, or an *Error. Run does not call
// task.End; the caller does once Run has returned.
func Run(task *cancellable.Controller, sink ProgressSink, vaultPath, backupPath string, opts ...Option) (Summary, error) {
	r := &run{
		task:       task,
		vaultPath:  vaultPath,
		backupPath: backupPath,
		logger:     logging.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.progress = newProgress(sink, r.now)
	return r.execute()
}

func (r *run) cancelled() bool {
	return r.task != nil && r.task.IsCancelled()
}

// tick flushes progress when due and reports whether the run was cancelled.
func (r *run) tick() error {
	if !r.progress.shouldUpdate() {
		return nil
	}
	if r.cancelled() {
		return ErrCancelled
	}
	r.progress.flush()
	return nil
}

func (r *run) execute() (Summary, error) {
	if r.cancelled() {
		return Summary{}, ErrCancelled
	}
	started := r.now()
	r.logger.Info("backup started",
		logging.String(logging.FieldEventType, "backup_started"),
		logging.String(logging.FieldVaultPath, r.vaultPath),
		logging.String("backup_path", r.backupPath),
	)

	r.progress.startPhase(PhaseFinding, true)
	entries, err := r.find()
	if err != nil {
		return Summary{}, err
	}
	r.progress.endPhase()
	if r.cancelled() {
		return Summary{}, ErrCancelled
	}

	if err := os.MkdirAll(r.backupPath, 0o755); err != nil {
		return Summary{}, &Error{Kind: KindLocked, Detail: err.Error(), Err: err}
	}
	lock, err := vaultlock.Acquire(r.backupPath)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, vaultlock.ErrLocked) {
			detail = ""
		}
		return Summary{}, &Error{Kind: KindLocked, Detail: detail, Err: err}
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Debug("backup lock release failed", logging.Error(err))
		}
	}()

	r.progress.startPhase(PhaseChecking, false)
	r.progress.FilesTotal = int64(len(entries))
	checked, err := r.check(entries)
	if err != nil {
		return Summary{}, err
	}
	r.progress.FilesTotal = int64(len(checked))
	r.progress.BytesTotal = r.progress.BytesDone
	r.progress.endPhase()
	if r.cancelled() {
		return Summary{}, ErrCancelled
	}

	r.progress.startPhase(PhaseCopying, false)
	if err := r.copyAll(checked); err != nil {
		return Summary{}, err
	}
	r.progress.endPhase()
	if r.cancelled() {
		return Summary{}, ErrCancelled
	}

	summary := Summary{Files: r.progress.FilesTotal, Bytes: r.progress.BytesTotal}
	r.logger.Info("backup completed",
		logging.String(logging.FieldEventType, "backup_completed"),
		logging.Int64("files", summary.Files),
		logging.Int64("bytes", summary.Bytes),
		logging.Duration("elapsed", r.now().Sub(started)),
	)
	return summary, nil
}

func (r *run) debugIO(path string, err error) {
	r.logger.Debug("backup file error",
		logging.String("path", path),
		logging.Error(err),
	)
}

// String formats a summary for logs and notifications.
func (s Summary) String() string {
	return fmt.Sprintf("%d files, %s", s.Files, humanBytes(s.Bytes))
}
