// Package supervisor starts, health-checks and stops the vault daemon.
//
// At most one daemon process is tracked at a time. Every start (and every
// stop) advances a generation counter; asynchronous reports from the watcher
// goroutine carry the generation they were started under so the owner can
// drop reports that belong to an instance it already replaced.
//
// A Supervisor is owned by a single goroutine. Only the watcher runs
// concurrently, and it communicates exclusively through the report callback
// and an internal completion channel.
package supervisor
