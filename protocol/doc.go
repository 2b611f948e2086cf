// Package protocol carries the wire contract between the host and the
// script runtime: one JSON envelope line per invocation request, and a
// marker-framed response line that separates the structured command payload
// from free-form diagnostic output on the same stream.
package protocol
