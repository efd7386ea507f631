// Package cancellable implements cooperative cancellation with a synchronous
// rendezvous for long-running launcher tasks.
//
// A Controller is created when a task starts and handed to both the goroutine
// running the task and the owner that may cancel it. The task polls
// IsCancelled at bounded intervals and must call End on every exit path;
// Cancel blocks the caller until that End arrives, so once Cancel returns the
// task no longer touches shared resources such as the backup destination.
package cancellable
