// Package history records backup runs in a SQLite database under the state
// directory so the CLI can show when a vault was last backed up and how.
//
// Runs are inserted as running when a backup begins and finished with their
// outcome. Runs still marked running when the store is opened belonged to a
// launcher that exited mid-backup and are marked interrupted.
package history
