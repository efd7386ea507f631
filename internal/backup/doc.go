// Package backup copies a vault into a backup directory incrementally.
//
// A run has three phases. Finding lists the fixed index files plus every file
// under the tags, media and thumb_album trees. Checking compares each source
// modification time with the copy already in the backup and keeps only the
// files that are missing or older there. Copying streams each of those files
// into a staging file under <backup>/temp, stamps it with the source mtime and
// renames it into place, so an interrupted run leaves no partial files and a
// rerun only copies what is still out of date.
//
// The backup root is locked with vaultlock for the checking and copying
// phases. Cancellation is cooperative and polled whenever progress is
// flushed, at most every 100 ms.
package backup
