// Package app is the composition root of the labbcat CLI.
//
// # Overview
//
// Run loads ~/.config/labbcat/config.toml and prefs.toml, builds a zap
// logger and a Prometheus registry for transport metrics, opens a
// labbcat.Session and dispatches to one entry of the command table.
//
// # Components
//
//   - app.go: Run, session wiring and the verbose metrics summary
//   - commands.go: the command table and each command's output
//   - poller.go: background goroutine feeding the watch view's state.Store
//   - logger.go: console or JSON zap logger per config
//   - prompt.go: interactive credential prompter for non-batch runs
//
// # Polling Behavior
//
// The watch command polls each task every 2 seconds. A failed poll keeps
// the previous statuses and doubles the interval, up to 30 seconds, until a
// poll succeeds. Polling stops once every watched task has finished; the
// view stays open until the user quits.
//
// # Cancellation
//
// SIGINT and SIGTERM cancel the context passed to Run, which also calls
// Session.Cancel so uploads stop at the next chunk and waits return their
// last status.
package app
