package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DaemonLogPattern matches the files created by NewDaemonLogFile.
const DaemonLogPattern = "*.log"

// NewDaemonLogFile creates <dir>/YYYY-MM-DD-<unix-millis>-<pid>.log for one
// daemon start. The caller owns the returned file.
func NewDaemonLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create daemon log directory: %w", err)
	}
	name := fmt.Sprintf("%s-%d-%d.log", now.Format("2006-01-02"), now.UnixMilli(), os.Getpid())
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open daemon log file: %w", err)
	}
	return file, nil
}
