// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, request parsing, and the common
// middleware chain (logging, recovery, CORS, request ids).
package httputil
