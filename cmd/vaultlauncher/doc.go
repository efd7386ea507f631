// Package main hosts the vaultlauncher CLI entrypoint and command graph.
//
// The serve command runs the launcher itself: the worker that supervises the
// vault daemon, the backup scheduler and the IPC socket. Every other command
// is a thin client that translates terminal invocations into IPC calls
// against a serving launcher, falling back to offline reads where that makes
// sense (status, backup history, configuration).
package main
