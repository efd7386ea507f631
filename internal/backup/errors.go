package backup

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the controller was cancelled mid-run.
var ErrCancelled = errors.New("backup cancelled")

// ErrorKind classifies backup failures.
type ErrorKind string

const (
	// KindLocked means the backup root is held by another process.
	KindLocked ErrorKind = "locked"
	// KindNoEncryptedFiles means the source folder holds no vault data.
	KindNoEncryptedFiles ErrorKind = "no_encrypted_files"
	// KindUnknown covers I/O failures.
	KindUnknown ErrorKind = "unknown"
)

// Error is a typed backup failure.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("backup %s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("backup %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("backup %s", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ioError(action, path string, err error) *Error {
	return &Error{
		Kind:   KindUnknown,
		Detail: fmt.Sprintf("Error %v %s file %s", err, action, path),
		Err:    err,
	}
}
