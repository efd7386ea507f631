// Package schedule triggers automatic backups from a standard five-field cron
// expression.
package schedule

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vaultlauncher/internal/logging"
)

// Scheduler fires a callback on a cron schedule. At most one expression is
// active at a time.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	fire    func()
	logger  *slog.Logger
	expr    string
	entry   cron.EntryID
	running bool
}

// New creates a stopped Scheduler that calls fire on every tick. fire runs
// on a cron goroutine and must not block.
func New(fire func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(),
		fire:   fire,
		logger: logger,
	}
}

// Validate reports whether expr is an acceptable schedule. Empty disables
// scheduling and is valid.
func Validate(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Set replaces the active expression. An empty expression removes it.
func (s *Scheduler) Set(expr string) error {
	expr = strings.TrimSpace(expr)
	if err := Validate(expr); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if expr == s.expr {
		return nil
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	s.expr = expr
	if expr == "" {
		s.logger.Info("backup schedule disabled", logging.String(logging.FieldEventType, "schedule_disabled"))
		return nil
	}
	entry, err := s.cron.AddFunc(expr, s.tick)
	if err != nil {
		s.expr = ""
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entry = entry
	s.logger.Info("backup schedule set",
		logging.String(logging.FieldEventType, "schedule_set"),
		logging.String("schedule", expr),
	)
	return nil
}

// Expression returns the active expression.
func (s *Scheduler) Expression() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expr
}

// Next returns the next fire time after now, or the zero time when no
// schedule is set.
func (s *Scheduler) Next(now time.Time) time.Time {
	s.mu.Lock()
	expr := s.expr
	s.mu.Unlock()
	if expr == "" {
		return time.Time{}
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(now)
}

// Start begins firing. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
}

// Stop halts the scheduler and waits for a running callback to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	s.logger.Debug("backup schedule fired")
	if s.fire != nil {
		s.fire()
	}
}
