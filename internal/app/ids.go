// Package app contains the application layer: services implementing the
// primary ports, the worker pool, and the interval sweeper. Services hold no
// state beyond injected dependencies; every invariant that must survive
// concurrency is enforced by the storage layer's conditional writes.
package app

import "github.com/google/uuid"

// newID returns a prefixed unique identifier, e.g. "prop-9f3c...".
// The prefix makes IDs self-describing in logs and foreign keys.
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
