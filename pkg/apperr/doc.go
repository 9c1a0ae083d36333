// Package apperr defines the error taxonomy shared by all services and
// the mapping from errors to HTTP status codes. Services wrap these
// sentinels with fmt.Errorf("...: %w", ...) so that handler-level
// mapping keeps working while logs carry the original cause.
package apperr
