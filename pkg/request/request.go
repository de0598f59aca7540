// Package request defines immutable HTTP request specifications and their outcomes.
//
// Spec describes one HTTP call: method, URL, header fields and form body fields.
// Every With* method returns a modified copy, so a Spec can be shared safely between goroutines.
//
// Outcome is the result of one transfer, it is always exactly one of *Success or *Failure.
// Use Split function or a type switch to inspect it.
package request
