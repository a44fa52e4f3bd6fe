// Package state shares watched task statuses between the task poller and the
// watch view.
//
// The poller is the single writer: each round it calls Store.Update with the
// statuses of every watched task, or with the error that stopped the round.
// The UI reads with Store.Snapshot, which returns a copy so rendering never
// races with the next poll.
//
// A failed poll keeps the previous statuses and counts consecutive failures.
// Snapshot.IsOffline reports two or more in a row, and Snapshot.Done reports
// that every watched task has stopped running.
package state
