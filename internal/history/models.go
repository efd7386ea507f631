package history

import "time"

// Status is the state of a recorded run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// Run is one backup attempt.
type Run struct {
	ID           int64
	VaultPath    string
	BackupPath   string
	Trigger      Trigger
	Status       Status
	Files        int64
	Bytes        int64
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the elapsed time of a finished run, or zero.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome is the result stored by Finish.
type Outcome struct {
	Status       Status
	Files        int64
	Bytes        int64
	ErrorKind    string
	ErrorMessage string
}
