package session

import "errors"

var (
	// ErrNotFound is returned for reads and updates of a session id
	// that has no record, including records removed by expiry. Writers
	// racing the sweeps must treat it as expected, not fatal.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when creating a session id that already
	// has a record. With generated ids this indicates a bug or an id
	// collision; it is surfaced rather than silently overwritten.
	ErrConflict = errors.New("session already exists")
)
