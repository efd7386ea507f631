package worker

import (
	"vaultlauncher/internal/logging"
	"vaultlauncher/internal/notifications"
	"vaultlauncher/internal/tools"
)

// handleRunTool stops the daemon and runs a maintenance tool against the
// vault. The daemon comes back once the tool reports or fails to start.
func (w *Worker) handleRunTool(m RunTool) {
	if !w.requireVault("run_tool") {
		return
	}
	w.stopDaemon()
	w.state.Tool = m.Tool

	_, err := w.tools.Run(w.state.DaemonBinary, tools.Request{
		Tool:      m.Tool,
		VaultPath: w.state.VaultPath,
		User:      m.Username,
		Password:  m.Password,
	})
	if err != nil {
		logging.ErrorWithContext(w.logger, "vault tool failed to start", "tool_start_failed",
			logging.String("tool", string(m.Tool)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check binaries.daemon in the launcher config"),
		)
		w.sink.Publish(ToolStatusChanged{Status: TaskError, Tool: m.Tool, Detail: err.Error()})
		w.startDaemon(false)
		return
	}
	w.sink.Publish(ToolStatusChanged{Status: TaskRunning, Tool: m.Tool})
}

func (w *Worker) handleCancelTool() {
	if !w.tools.Running() {
		return
	}
	w.tools.Cancel()
	w.sink.Publish(ToolStatusChanged{Status: TaskIdle, Tool: w.state.Tool})
}

func (w *Worker) handleToolSuccess(m ToolSuccess) {
	if !w.tools.Current(m.ToolID) {
		w.logger.Debug("stale tool result", logging.Generation(m.ToolID))
		return
	}
	w.tools.Reap(m.ToolID)
	w.logger.Info("vault tool finished",
		logging.String(logging.FieldEventType, "tool_completed"),
		logging.String("tool", string(w.state.Tool)),
		logging.Generation(m.ToolID),
	)
	w.sink.Publish(ToolStatusChanged{Status: TaskSuccess, Tool: w.state.Tool})
	w.notify(notifications.EventToolCompleted, notifications.Payload{"vault": w.state.VaultPath, "tool": string(w.state.Tool)})
	w.startDaemon(false)
}

func (w *Worker) handleToolError(m ToolError) {
	if !w.tools.Current(m.ToolID) {
		w.logger.Debug("stale tool result", logging.Generation(m.ToolID))
		return
	}
	w.tools.Reap(m.ToolID)
	logging.ErrorWithContext(w.logger, "vault tool failed", "tool_failed",
		logging.String("tool", string(w.state.Tool)),
		logging.Generation(m.ToolID),
		logging.String("detail", m.Detail),
		logging.String(logging.FieldErrorHint, "run the tool again or inspect the vault manually"),
	)
	w.sink.Publish(ToolStatusChanged{Status: TaskError, Tool: w.state.Tool, Detail: m.Detail})
	w.notify(notifications.EventToolFailed, notifications.Payload{
		"vault": w.state.VaultPath,
		"tool":  string(w.state.Tool),
		"error": m.Detail,
	})
	w.startDaemon(false)
}
