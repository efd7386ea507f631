// Package tools runs one-shot vault maintenance commands through the daemon
// binary and extracts a failure reason from their output.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"vaultlauncher/internal/logging"
)

// Tool names a maintenance command.
type Tool string

const (
	// Clean removes orphaned data and emptied trash. It needs credentials.
	Clean Tool = "clean"
	// Recover rebuilds the vault indexes from the stored media.
	Recover Tool = "recover"
)

// ErrUnknownTool is returned for a Tool outside Clean and Recover.
var ErrUnknownTool = errors.New("unknown vault tool")

const errorMarker = "[ERROR]"

// ParseTool converts a user supplied name.
func ParseTool(name string) (Tool, error) {
	switch Tool(strings.ToLower(strings.TrimSpace(name))) {
	case Clean:
		return Clean, nil
	case Recover:
		return Recover, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Request describes one tool invocation.
type Request struct {
	Tool      Tool
	VaultPath string
	User      string
	Password  string
}

func (r Request) args() ([]string, error) {
	switch r.Tool {
	case Clean:
		return []string{"--clean", "--remove-trash", "--skip-lock", "--vault-path", r.VaultPath}, nil
	case Recover:
		return []string{"--recover", "--skip-lock", "--vault-path", r.VaultPath}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, r.Tool)
}

// Result is delivered once a tool process has exited.
type Result struct {
	Generation uint64
	Tool       Tool
	Failed     bool
	Detail     string
}

// ResultFunc receives tool results. It must not block.
type ResultFunc func(Result)

// Runner executes at most one tool at a time.
type Runner struct {
	report ResultFunc
	logger *slog.Logger

	generation uint64
	proc       *toolProcess
}

type toolProcess struct {
	cmd        *exec.Cmd
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRunner creates a Runner delivering results to report.
func NewRunner(report ResultFunc, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if report == nil {
		report = func(Result) {}
	}
	return &Runner{report: report, logger: logger}
}

// Current reports whether g belongs to the most recent run.
func (r *Runner) Current(g uint64) bool {
	return g == r.generation
}

// Running reports whether a tool process is tracked.
func (r *Runner) Running() bool {
	return r.proc != nil
}

// Run cancels any running tool and starts binary with the arguments of req.
// Spawn failures are returned directly and produce no Result.
func (r *Runner) Run(binary string, req Request) (uint64, error) {
	r.Cancel()

	args, err := req.args()
	if err != nil {
		return r.generation, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	var output bytes.Buffer
	cmd := exec.Command(binary, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	if req.Tool == Clean {
		cmd.Env = append(os.Environ(), "VAULT_USER="+req.User, "VAULT_PASSWORD="+req.Password)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return r.generation, fmt.Errorf("start %s tool: %w", req.Tool, err)
	}

	r.generation++
	proc := &toolProcess{cmd: cmd, generation: r.generation, cancel: cancel, done: make(chan struct{})}
	r.proc = proc
	r.logger.Info("vault tool started",
		logging.String(logging.FieldEventType, "tool_started"),
		logging.String("tool", string(req.Tool)),
		logging.Generation(proc.generation),
		logging.String(logging.FieldVaultPath, req.VaultPath),
	)

	go func() {
		defer close(proc.done)
		waitErr := cmd.Wait()
		if ctx.Err() != nil {
			return
		}
		result := Result{Generation: proc.generation, Tool: req.Tool}
		if detail, ok := FindError(output.String()); ok {
			result.Failed, result.Detail = true, detail
		} else if waitErr != nil {
			result.Failed, result.Detail = true, waitErr.Error()
		}
		r.report(result)
	}()
	return proc.generation, nil
}

// Cancel kills the running tool, if any, and waits for it to exit. Results
// of the cancelled run are never delivered.
func (r *Runner) Cancel() {
	r.generation++
	proc := r.proc
	if proc == nil {
		return
	}
	r.proc = nil
	proc.cancel()
	_ = proc.cmd.Process.Kill()
	<-proc.done
	r.logger.Info("vault tool cancelled",
		logging.String(logging.FieldEventType, "tool_cancelled"),
		logging.Generation(proc.generation),
	)
}

// Reap drops the tracked process once its Result for g has been handled.
func (r *Runner) Reap(g uint64) {
	if r.proc == nil || r.proc.generation != g {
		return
	}
	<-r.proc.done
	r.proc = nil
}

// FindError returns the message of the first output line carrying an
// [ERROR] marker: everything after the first marker, with later markers kept.
func FindError(output string) (string, bool) {
	for line := range strings.SplitSeq(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		_, rest, found := strings.Cut(line, errorMarker)
		if !found {
			continue
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}
