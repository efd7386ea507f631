package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a record for filtering, e.g. "daemon_started".
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldVaultPath is the vault directory the record concerns.
	FieldVaultPath = "vault_path"
	// FieldGeneration is the daemon, tool or backup generation a record belongs to.
	FieldGeneration = "generation"
	// FieldLaunchTag is the per-start daemon launch tag.
	FieldLaunchTag = "launch_tag"
	// FieldPhase is the backup phase.
	FieldPhase = "phase"
	// FieldRequestID correlates the records of one IPC request.
	FieldRequestID = "request_id"
)
