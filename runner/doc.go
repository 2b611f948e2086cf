// Package runner owns the external script runtime processes and the call
// protocol against them.
//
// Ownership boundary:
// - runtime binary discovery
// - process launch, local or over SSH
// - the two invocation strategies: ephemeral spawn-per-call and a
//   persistent worker correlated by request id
//
// Both strategies sit behind the same Invoker contract. Every failure a
// script or its process can produce comes back as an error value; nothing
// here panics past the invoker boundary.
package runner
