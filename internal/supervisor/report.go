package supervisor

// ReportKind identifies a watcher report.
type ReportKind int

const (
	// ReportStarted means the health endpoint answered 200.
	ReportStarted ReportKind = iota
	// ReportStartError means the process exited before becoming healthy.
	ReportStartError
	// ReportStopped means a healthy process exited.
	ReportStopped
)

func (k ReportKind) String() string {
	switch k {
	case ReportStarted:
		return "started"
	case ReportStartError:
		return "start_error"
	case ReportStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Report is delivered by the watcher goroutine. The callback must not block.
type Report struct {
	Kind       ReportKind
	Generation uint64
	LaunchTag  string
	// OpenBrowser echoes LaunchSpec.OpenBrowser on ReportStarted.
	OpenBrowser bool
	Err         *ExitError
}

// ReportFunc receives watcher reports.
type ReportFunc func(Report)
