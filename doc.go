// Package labbcat is a client for the LaBB-CAT corpus annotation server.
//
// # Overview
//
// A Session binds one server URL to one set of credentials. Every call
// returns the server's model decoded into Go values, or a typed error:
//
//   - *transport.Error: the exchange failed before an HTTP status arrived
//   - *envelope.MalformedError: the server answered with something other
//     than a LaBB-CAT envelope
//   - *envelope.ResponseError: the server reported a failure
//   - *ValidationError: a precondition failed and nothing was sent
//   - *StoreError: the task ID, credentials or server were unusable
//   - *PartialError: some items of a batch download failed
//
// # Tasks
//
// Searches and transcript uploads run as server tasks. A task ID can be
// polled with TaskStatus, waited on with WaitForTask, stopped with
// CancelTask and must be released with ReleaseTask once its results have
// been read:
//
//	id, err := s.Search(ctx, pattern, labbcat.SearchOptions{})
//	if err != nil {
//		return err
//	}
//	defer s.ReleaseTask(ctx, id)
//	matches, err := s.Matches(ctx, id, labbcat.MatchQuery{PageLength: 100})
//
// WaitForTask does not treat a timeout as an error: it returns the last
// status seen, whose Running field is still true.
//
// # Uploads
//
// Transcript uploads are negotiated in two steps. UploadTranscript sends the
// files and returns the parameters the server needs; ResolveUpload sends
// their values and returns the IDs of the tasks that ingest the
// transcripts. NewTranscript and UpdateTranscript perform both steps.
//
// # Cancellation
//
// Session.Cancel stops every operation in flight on the session. Multipart
// uploads stop at the next 1 KiB chunk, waits return their last status, and
// fragment downloads report the remaining items as cancelled.
package labbcat
