package supervisor

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrorKind classifies daemon start failures.
type ErrorKind string

const (
	KindLock       ErrorKind = "lock"
	KindPortInUse  ErrorKind = "port_in_use"
	KindInvalidTLS ErrorKind = "invalid_tls"
	KindUnknown    ErrorKind = "unknown"
)

// Reserved daemon exit codes.
const (
	ExitCodeLock       = 4
	ExitCodePortInUse  = 5
	ExitCodeInvalidTLS = 6
)

// ExitError describes why a daemon failed to start or run.
type ExitError struct {
	Kind ErrorKind
	// Code is the process exit code, -1 when the process was killed by a
	// signal or never ran.
	Code   int
	Detail string
}

func (e *ExitError) Error() string {
	switch e.Kind {
	case KindLock:
		return "vault daemon: vault is locked by another process"
	case KindPortInUse:
		return "vault daemon: port already in use"
	case KindInvalidTLS:
		return "vault daemon: invalid TLS certificate or key"
	}
	if e.Detail != "" {
		return "vault daemon: " + e.Detail
	}
	return fmt.Sprintf("vault daemon: exit status code: %d", e.Code)
}

// ExitErrorFromCode maps a daemon exit code to an ExitError.
func ExitErrorFromCode(code int) *ExitError {
	switch code {
	case ExitCodeLock:
		return &ExitError{Kind: KindLock, Code: code}
	case ExitCodePortInUse:
		return &ExitError{Kind: KindPortInUse, Code: code}
	case ExitCodeInvalidTLS:
		return &ExitError{Kind: KindInvalidTLS, Code: code}
	default:
		return &ExitError{Kind: KindUnknown, Code: code, Detail: fmt.Sprintf("Daemon exit status code: %d", code)}
	}
}

// exitErrorFromWait converts the result of cmd.Wait.
func exitErrorFromWait(err error) *ExitError {
	if err == nil {
		return ExitErrorFromCode(0)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ExitErrorFromCode(exitErr.ExitCode())
	}
	return &ExitError{Kind: KindUnknown, Code: -1, Detail: err.Error()}
}

func spawnError(err error) *ExitError {
	return &ExitError{Kind: KindUnknown, Code: -1, Detail: err.Error()}
}
