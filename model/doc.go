// Package model holds the records exchanged with a LaBB-CAT server: task
// statuses, upload negotiations, search matches and patterns, annotations,
// and the administrative records (corpora, projects, roles, users and so on).
//
// Types mirror the server's JSON field names; helpers on them never perform
// I/O.
package model
