package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"vaultlauncher/internal/daemonctl"
	"vaultlauncher/internal/deps"
	"vaultlauncher/internal/ipc"
	"vaultlauncher/internal/worker"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderStatus(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	printSection(out, "Launcher", launcherLines(snap, colorize), colorize)
	printSection(out, "Dependencies", dependencyLines(snap.Dependencies, colorize), colorize)
	printSection(out, "Backup", backupLines(snap, colorize), colorize)
}

func printSection(out io.Writer, title string, lines []string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}

func launcherLines(snap *daemonctl.Snapshot, colorize bool) []string {
	if !snap.Running || snap.Status == nil {
		return []string{renderStatusLine("Launcher", statusInfo, "Not running", colorize)}
	}
	st := snap.Status
	lines := []string{renderStatusLine("Launcher", statusOK, fmt.Sprintf("Running (pid %d)", st.PID), colorize)}
	if st.Fatal != nil {
		lines = append(lines, renderStatusLine("Fatal", statusError, problemText(st.Fatal), colorize))
		return lines
	}

	vaultKind := statusInfo
	vaultText := describeLauncherStatus(st.Launcher)
	switch worker.LauncherStatus(st.Launcher) {
	case worker.StatusOpen:
		vaultKind = statusOK
		vaultText = st.VaultPath
	case worker.StatusCreateAsk, worker.StatusLockAsk, worker.StatusInitialConfig, worker.StatusCreateVaultAsk:
		vaultKind = statusWarn
		vaultText = fmt.Sprintf("%s (%s)", vaultText, st.VaultPath)
	}
	lines = append(lines, renderStatusLine("Vault", vaultKind, vaultText, colorize))
	if st.OpenError != nil {
		lines = append(lines, renderStatusLine("Open error", statusError, problemText(st.OpenError), colorize))
	}

	lines = append(lines, renderStatusLine("Daemon", daemonKind(st.Daemon), daemonText(st.Daemon), colorize))
	if st.Daemon.LogFile != "" {
		lines = append(lines, renderStatusLine("Daemon log", statusInfo, st.Daemon.LogFile, colorize))
	}
	if st.Tool.Status != "" && st.Tool.Status != string(worker.TaskIdle) {
		lines = append(lines, renderStatusLine("Tool", taskKind(st.Tool.Status), strings.TrimSpace(st.Tool.Tool+" "+st.Tool.Status+" "+st.Tool.Detail), colorize))
	}
	return lines
}

func describeLauncherStatus(status string) string {
	switch worker.LauncherStatus(status) {
	case worker.StatusClosed:
		return "No vault open"
	case worker.StatusCreateAsk:
		return "Waiting: folder does not exist (open --create)"
	case worker.StatusLockAsk:
		return "Waiting: vault is locked (open --force)"
	case worker.StatusInitialConfig:
		return "Waiting: initial configuration (open --port)"
	case worker.StatusCreateVaultAsk:
		return "Waiting: vault needs an account (open --user)"
	case worker.StatusOpening:
		return "Opening"
	case worker.StatusOpenError:
		return "Open failed"
	default:
		return status
	}
}

func daemonKind(d ipc.DaemonState) statusKind {
	switch worker.DaemonStatus(d.Status) {
	case worker.DaemonStatusRunning:
		return statusOK
	case worker.DaemonStatusError:
		return statusError
	case worker.DaemonStatusStarting, worker.DaemonStatusStopping:
		return statusWarn
	default:
		return statusInfo
	}
}

func daemonText(d ipc.DaemonState) string {
	switch worker.DaemonStatus(d.Status) {
	case worker.DaemonStatusRunning:
		return "Running at " + d.URL
	case worker.DaemonStatusError:
		return problemText(&ipc.Problem{Kind: d.ErrorKind, Detail: d.Detail})
	case "":
		return "Stopped"
	default:
		return strings.ToUpper(d.Status[:1]) + d.Status[1:]
	}
}

func taskKind(status string) statusKind {
	switch worker.TaskStatus(status) {
	case worker.TaskSuccess:
		return statusOK
	case worker.TaskError:
		return statusError
	case worker.TaskRunning:
		return statusWarn
	default:
		return statusInfo
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func backupLines(snap *daemonctl.Snapshot, colorize bool) []string {
	var lines []string
	if snap.Status != nil {
		b := snap.Status.Backup
		switch worker.TaskStatus(b.Status) {
		case worker.TaskRunning:
			lines = append(lines, renderStatusLine("Current", statusWarn, progressText(b.Progress), colorize))
		case worker.TaskError:
			lines = append(lines, renderStatusLine("Current", statusError, problemText(&ipc.Problem{Kind: b.ErrorKind, Detail: b.Detail}), colorize))
		}
	}
	if snap.LastRun == nil {
		return append(lines, renderStatusLine("Last run", statusInfo, "No backups recorded", colorize))
	}
	run := snap.LastRun
	kind := statusInfo
	switch run.Status {
	case "succeeded":
		kind = statusOK
	case "failed", "interrupted":
		kind = statusError
	case "cancelled":
		kind = statusWarn
	}
	text := fmt.Sprintf("%s %s (%s)", run.Status, humanize.Time(run.StartedAt), run.Trigger)
	if run.ErrorKind != "" {
		text += ": " + run.ErrorKind
	}
	return append(lines, renderStatusLine("Last run", kind, text, colorize))
}

func progressText(p *ipc.BackupProgress) string {
	if p == nil {
		return "Starting"
	}
	if p.Indeterminate {
		return p.Phase
	}
	text := fmt.Sprintf("%s %d/%d files, %s of %s", p.Phase, p.FilesDone, p.FilesTotal,
		humanize.IBytes(uint64(p.BytesDone)), humanize.IBytes(uint64(p.BytesTotal)))
	if p.CurrentFile != "" {
		text += " (" + p.CurrentFile + ")"
	}
	return text
}

func problemText(p *ipc.Problem) string {
	if p == nil {
		return ""
	}
	if p.Detail == "" {
		return p.Kind
	}
	return p.Kind + ": " + p.Detail
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
