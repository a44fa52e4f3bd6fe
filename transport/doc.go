// Package transport performs the HTTP exchanges a LaBB-CAT client needs.
//
// # Overview
//
// Three request shapes are supported:
//
//   - GET (or any method) with parameters encoded in the query string
//   - POST with an application/x-www-form-urlencoded body
//   - POST with a streamed multipart/form-data body
//
// Parameters are an ordered list. A nil value is left off the wire entirely,
// a slice produces one pair or part per element, and a *File produces a file
// part whose content is opened lazily and copied ChunkSize bytes at a time.
//
// # Cancellation
//
// Multipart uploads take a *Canceller. The flag is checked before each file
// chunk and before each part boundary; once set, the request body fails and
// the exchange returns an error matching ErrRequestCancelled. Context
// cancellation is honoured the same way.
//
// # Authorization
//
// Request.Authorization is applied per request. A value starting with
// "Cookie " installs the remainder as the Cookie header; anything else is
// sent as the Authorization header. Each Client also owns a cookie jar so
// server-issued session cookies persist between calls without leaking
// between clients.
//
// # Responses
//
// Response bodies are returned as raw bytes. Interpreting the LaBB-CAT JSON
// envelope is the job of package envelope.
package transport
