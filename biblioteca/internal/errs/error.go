package errs

import (
	"errors"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrNoCopiesAvailable    = errors.New("no copies available")
	ErrInvalidAdjustment    = errors.New("total below outstanding loans")
	ErrAlreadyReturned      = errors.New("loan already returned")
	ErrDuplicateReservation = errors.New("pending reservation already exists")
	ErrConflict             = errors.New("already exists")
	ErrAuthorHasBooks       = errors.New("author still has books")
	ErrBooksOnLoan          = errors.New("books with outstanding loans")
	ErrUserNotActive        = errors.New("user is not active")
	ErrDueDate              = errors.New("due date must be in the future")

	// ErrConsistencyViolation means the availability counters were observed
	// outside their invariant. Callers must surface it, never clamp it.
	ErrConsistencyViolation = errors.New("availability consistency violation")
)
