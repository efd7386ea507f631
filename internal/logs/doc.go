// Package logs reads the launcher's log files for the CLI: the launcher log
// itself and the per-start output files of the vault daemon.
//
// Reads use bounded memory. Last reads a line window from the end of a
// file, Follow polls for appended lines until its context ends and reopens
// from the start when the file was truncated or replaced.
package logs
