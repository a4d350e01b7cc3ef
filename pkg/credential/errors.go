package credential

import (
	"errors"
	"fmt"
)

// Common selection errors that can be checked with errors.Is().
var (
	// ErrNoCredentials is returned when the active set is empty.
	ErrNoCredentials = errors.New("no credentials available")

	// ErrAllExcluded is returned when the exclusion set removes every
	// active credential.
	ErrAllExcluded = errors.New("all candidate credentials excluded")

	// ErrUnknownCredential is returned when recording against a token the
	// pool does not know.
	ErrUnknownCredential = errors.New("unknown credential")
)

// AllExcludedError is returned when exclusion empties the candidate set.
// It carries the sizes involved so retry logic can report how far it got.
type AllExcludedError struct {
	// Active is the number of active credentials before exclusion.
	Active int

	// Excluded is the size of the exclusion set.
	Excluded int
}

// Error implements the error interface.
func (e *AllExcludedError) Error() string {
	return fmt.Sprintf("all %d active credentials excluded (%d in exclusion set)", e.Active, e.Excluded)
}

// Is implements error matching for errors.Is().
func (e *AllExcludedError) Is(target error) bool {
	return target == ErrAllExcluded
}
