package ledger

import "errors"

// The ledger surfaces exactly two error kinds. Duplicate sessions and
// duplicate events are not errors: the existing record is returned instead.
var (
	// ErrSessionNotFound is returned when an operation references a
	// session ID that has no record.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStoreUnavailable wraps any storage-layer I/O failure. The cause
	// is attached below it in the chain; no retry happens inside the core.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// IsNotFound reports whether err is the session-missing error kind.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsStoreUnavailable reports whether err is the storage-failure error kind.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
