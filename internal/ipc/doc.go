// Package ipc exposes the launcher over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// The server forwards requests to the worker as messages and answers from
// the snapshot a worker.Tracker folds from its events. Requests that change
// state wait until the tracker shows the outcome, so a client sees the
// launcher status its request produced.
package ipc
