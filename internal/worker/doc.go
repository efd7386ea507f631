// Package worker is the launcher's control loop.
//
// A Worker owns all session state: the open vault and its lock, the per-vault
// launcher config, the daemon supervisor, the maintenance tool runner and the
// active backup. Everything that changes that state arrives as a Message in
// one unbounded mailbox and is handled on the goroutine running Run, in
// arrival order. Long operations run on their own goroutines and report back
// through the same mailbox; their completion messages carry the generation
// they were started under and are ignored once a newer operation of the same
// kind has replaced them.
//
// The worker never renders anything. It publishes Events to a Sink, and the
// Tracker sink folds those events into a Snapshot that adapters such as the
// IPC server can query.
package worker
