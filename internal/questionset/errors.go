package questionset

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both absent sets and sets the caller may not see.
	ErrNotFound = errors.New("question set not found")

	// ErrInvalidID is returned for ids that can never name a stored set.
	ErrInvalidID = fmt.Errorf("%w: invalid id", ErrNotFound)

	// ErrIndexConflict means concurrent index writers kept winning the race.
	ErrIndexConflict = errors.New("question set index: too many concurrent updates")

	// ErrOwnerRequired is returned when creating a set without an owner.
	ErrOwnerRequired = errors.New("question set: owner username is required")
)
