// Package envelope decodes and encodes the JSON wrapper LaBB-CAT puts around
// every API response:
//
//	{"title":"...","version":"...","code":0,"errors":[],"messages":[],"model":{...}}
//
// Decode separates two kinds of failure. A body that cannot be read as an
// envelope is a *MalformedError when the HTTP status was 2xx, and a
// *ResponseError with code -1 otherwise. A readable envelope whose status is
// not 2xx, whose code is non-zero or whose errors list is non-empty is
// reported by Err as a *ResponseError. Both kinds of unreadable body match
// ErrMalformed.
package envelope
