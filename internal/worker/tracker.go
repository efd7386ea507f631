package worker

import (
	"context"
	"sync"

	"vaultlauncher/internal/backup"
)

// Snapshot is the state a presentation layer needs, folded from events.
type Snapshot struct {
	Launcher  LauncherStatus
	VaultPath string
	OpenError OpenFailed
	Fatal     FatalError
	Daemon    DaemonStatusChanged
	Config    ConfigSnapshot
	Settings  UserSettingsChanged

	Backup   BackupStatusChanged
	Progress backup.Snapshot
	Key      KeyResult
	Tool     ToolStatusChanged
	Path     PathChosen

	// The counters let callers wait for the result of their own request.
	// BackupSeq, KeySeq and ToolSeq advance when an operation reaches a final
	// state, the Start counters when one begins running. The others count
	// every event of their kind.
	LauncherSeq    uint64
	DaemonSeq      uint64
	ConfigSeq      uint64
	BackupStartSeq uint64
	BackupSeq      uint64
	KeySeq         uint64
	ToolStartSeq   uint64
	ToolSeq        uint64
	Seq            uint64
}

// Tracker is a Sink that keeps the latest Snapshot and forwards events to an
// optional next Sink.
type Tracker struct {
	next Sink

	mu      sync.Mutex
	snap    Snapshot
	changed chan struct{}
}

// NewTracker returns a Tracker forwarding to next, which may be nil.
func NewTracker(next Sink) *Tracker {
	return &Tracker{
		next:    next,
		snap:    Snapshot{Launcher: StatusClosed, Daemon: DaemonStatusChanged{Status: DaemonStatusStopped}},
		changed: make(chan struct{}),
	}
}

// Publish implements Sink.
func (t *Tracker) Publish(e Event) {
	t.mu.Lock()
	t.apply(e)
	t.snap.Seq++
	close(t.changed)
	t.changed = make(chan struct{})
	t.mu.Unlock()

	if t.next != nil {
		t.next.Publish(e)
	}
}

func (t *Tracker) apply(e Event) {
	s := &t.snap
	switch ev := e.(type) {
	case LauncherStatusChanged:
		s.Launcher = ev.Status
		s.VaultPath = ev.VaultPath
		s.LauncherSeq++
		// A failed open closes the vault afterwards; the error stays
		// visible until the next attempt.
		if ev.Status != StatusOpenError && ev.Status != StatusClosed {
			s.OpenError = OpenFailed{}
		}
	case OpenFailed:
		s.OpenError = ev
	case FatalError:
		s.Fatal = ev
	case DaemonStatusChanged:
		logFile := s.Daemon.LogFile
		s.Daemon = ev
		if s.Daemon.LogFile == "" {
			s.Daemon.LogFile = logFile
		}
		s.DaemonSeq++
	case ConfigSnapshot:
		s.Config = ev
		s.ConfigSeq++
	case UserSettingsChanged:
		s.Settings = ev
	case BackupProgress:
		s.Progress = ev.Progress
	case BackupStatusChanged:
		s.Backup = ev
		if ev.Status == TaskRunning {
			s.Progress = backup.Snapshot{}
			s.BackupStartSeq++
		} else {
			s.BackupSeq++
		}
	case KeyResult:
		s.Key = ev
		s.KeySeq++
	case ToolStatusChanged:
		s.Tool = ev
		if ev.Status == TaskRunning {
			s.ToolStartSeq++
		} else {
			s.ToolSeq++
		}
	case PathChosen:
		s.Path = ev
	}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Wait blocks until ready returns true for the current state or ctx ends.
func (t *Tracker) Wait(ctx context.Context, ready func(Snapshot) bool) (Snapshot, error) {
	for {
		t.mu.Lock()
		snap, changed := t.snap, t.changed
		t.mu.Unlock()
		if ready(snap) {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}
