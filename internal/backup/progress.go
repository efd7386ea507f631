package backup

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressInterval is the minimum time between two progress flushes.
const ProgressInterval = 100 * time.Millisecond

// Phase is the current step of a backup run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFinding
	PhaseChecking
	PhaseCopying
)

func (p Phase) String() string {
	switch p {
	case PhaseFinding:
		return "finding"
	case PhaseChecking:
		return "checking"
	case PhaseCopying:
		return "copying"
	default:
		return "idle"
	}
}

// Snapshot is a point-in-time view of a running backup.
type Snapshot struct {
	Phase          Phase
	Indeterminate  bool
	FilesDone      int64
	FilesTotal     int64
	BytesDone      int64
	BytesTotal     int64
	CurrentFile    string
	FileBytesDone  int64
	FileBytesTotal int64
}

// Fraction returns overall completion in [0, 1]. Byte counters are preferred
// over file counters when known.
func (s Snapshot) Fraction() float64 {
	if s.Indeterminate {
		return 0
	}
	switch {
	case s.BytesTotal > 0:
		return math.Min(1, float64(s.BytesDone)/float64(s.BytesTotal))
	case s.FilesTotal > 0:
		return math.Min(1, float64(s.FilesDone)/float64(s.FilesTotal))
	default:
		return 1
	}
}

// Summary renders the overall progress line.
func (s Snapshot) Summary() string {
	if s.Indeterminate {
		return fmt.Sprintf("%d", s.FilesDone)
	}
	pct := int(math.Round(s.Fraction() * 100))
	switch {
	case s.BytesTotal > 0:
		return fmt.Sprintf("%d%% %d / %d (%s / %s)", pct, s.FilesDone, s.FilesTotal,
			humanize.IBytes(uint64(s.BytesDone)), humanize.IBytes(uint64(s.BytesTotal)))
	case s.FilesTotal > 0:
		return fmt.Sprintf("%d%% %d / %d", pct, s.FilesDone, s.FilesTotal)
	default:
		return "100% (0 / 0)"
	}
}

// FileLine renders the progress of the file being copied, or "".
func (s Snapshot) FileLine() string {
	if s.CurrentFile == "" {
		return ""
	}
	if s.FileBytesTotal == 0 {
		return s.CurrentFile
	}
	pct := int(math.Round(float64(s.FileBytesDone) / float64(s.FileBytesTotal) * 100))
	return fmt.Sprintf("%s (%d%% - %s, %s)", s.CurrentFile, pct,
		humanize.IBytes(uint64(s.FileBytesDone)), humanize.IBytes(uint64(s.FileBytesTotal)))
}

// ProgressSink receives throttled progress snapshots. Calls come from the
// backup goroutine.
type ProgressSink interface {
	BackupProgress(Snapshot)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Snapshot)

// BackupProgress implements ProgressSink.
func (f ProgressFunc) BackupProgress(s Snapshot) {
	f(s)
}

type progress struct {
	Snapshot
	sink       ProgressSink
	now        func() time.Time
	lastUpdate time.Time
}

func newProgress(sink ProgressSink, now func() time.Time) *progress {
	if sink == nil {
		sink = ProgressFunc(func(Snapshot) {})
	}
	return &progress{
		Snapshot:   Snapshot{Indeterminate: true},
		sink:       sink,
		now:        now,
		lastUpdate: now(),
	}
}

func (p *progress) shouldUpdate() bool {
	return p.now().Sub(p.lastUpdate) >= ProgressInterval
}

func (p *progress) flush() {
	p.lastUpdate = p.now()
	p.sink.BackupProgress(p.Snapshot)
}

func (p *progress) startPhase(phase Phase, indeterminate bool) {
	p.Phase = phase
	p.Indeterminate = indeterminate
	p.FilesDone = 0
	p.BytesDone = 0
	p.CurrentFile = ""
	p.FileBytesDone = 0
	p.FileBytesTotal = 0
	p.flush()
}

func (p *progress) endPhase() {
	p.FilesDone = p.FilesTotal
	p.BytesDone = p.BytesTotal
	p.flush()
}

func (p *progress) startFile(path string, size int64) {
	p.CurrentFile = path
	p.FileBytesTotal = size
	p.FileBytesDone = 0
}

func (p *progress) endFile() {
	p.FileBytesDone = p.FileBytesTotal
}
