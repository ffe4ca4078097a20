package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource (booking or listing) does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. check-out not after check-in, guest count out of bounds,
// add-on quantity below 1). Handlers should map this to HTTP 422.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when a requested date range overlaps an existing
// active booking for the same listing. Handlers should map this to HTTP 409.
// Callers may offer alternative dates; retrying the same range will fail
// again until the conflicting booking is cancelled or rejected.
var ErrConflict = errors.New("booking conflict")

// ErrInvalidTransition is returned when a status or payment change does not
// follow an edge of the booking state machine (e.g. confirming a cancelled
// booking). It usually indicates stale client state. Maps to HTTP 409.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrLockTimeout is returned when the per-listing serialization lock could
// not be acquired within the configured timeout. The operation was never
// attempted and no state was written; callers should retry with backoff.
// Handlers should map this to HTTP 503 with a Retry-After header.
var ErrLockTimeout = errors.New("listing lock timeout")

// ErrStaleVersion is returned by the booking repo when a write loses an
// optimistic-concurrency race: the row's version column no longer matches
// the version the booking was loaded with. The service layer retries the
// whole load-transition-write sequence on this error, so it should not
// normally reach handlers.
var ErrStaleVersion = errors.New("stale booking version")
