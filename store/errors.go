package store

import "errors"

// Sentinel error kinds a controller may check with errors.Is. These are the
// only failure modes Resources[T] reports; every other combination of valid
// inputs succeeds. A History reports an unknown base revision with a plain
// error that wraps none of these.
var (
	// ErrStaleWrite is returned when an Update/Delete's resourceVersion
	// precondition does not match the stored object.
	ErrStaleWrite = errors.New("store: stale write")

	// ErrNameCollision is returned when Create targets a name already
	// present in the collection.
	ErrNameCollision = errors.New("store: name collision")

	// ErrUIDMismatch is returned when Update/Remove targets an object
	// whose current uid differs from the one the caller observed.
	ErrUIDMismatch = errors.New("store: uid mismatch")

	// ErrTerminatingViolation is returned when an Update to a terminating
	// object changes anything beyond its finalizer set.
	ErrTerminatingViolation = errors.New("store: non-finalizer update to terminating object")

	// ErrNoOp is returned by callers that found nothing to do; it is not
	// an error condition and is safe to discard.
	ErrNoOp = errors.New("store: no-op")

	// ErrInvalidAction is returned when a ControllerAction cannot be
	// validated against the current state at all (e.g. scheduling a pod
	// that does not exist). Internally this indicates a controller bug;
	// at the HTTP boundary it maps to 4xx.
	ErrInvalidAction = errors.New("store: invalid action")

	// ErrNotFound is returned by Get-style lookups that find nothing.
	ErrNotFound = errors.New("store: not found")
)
