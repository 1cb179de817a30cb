package sqlite

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another engine already owns the database.
var ErrLocked = errors.New("database is locked by another engine")

// Lock takes an exclusive, non-blocking lock next to the database file so that
// only one engine writes the timeline for a sync domain.
func Lock(dbPath string) (*flock.Flock, error) {
	if dbPath == "" || dbPath == ":memory:" {
		return nil, nil
	}
	fl := flock.New(dbPath + ".lock")
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fl, nil
}
