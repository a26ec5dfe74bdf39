package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tripdesk/apiserver/types"
)

var (
	// ErrNotFound is returned when a record does not exist. It matches
	// types.ErrNotFound under errors.Is.
	ErrNotFound = fmt.Errorf("store: %w", types.ErrNotFound)

	// ErrStatusMismatch is returned by conditional trip request writes when
	// the stored status differs from the expected one.
	ErrStatusMismatch = errors.New("store: trip request status changed")

	// ErrDuplicateEmail is returned when a user email is already taken.
	ErrDuplicateEmail = errors.New("store: email already registered")

	// ErrReferenced is returned when a guarded delete or deactivation is
	// blocked by dependent trip requests.
	ErrReferenced = errors.New("store: record has dependent trip requests")

	// ErrInvalidReference is returned when a foreign key does not resolve.
	ErrInvalidReference = errors.New("store: referenced record does not exist")
)

// ReferencedError is ErrReferenced carrying the number of blocking trip
// requests, counted by the statement that refused the write.
type ReferencedError struct {
	Count int
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s (%d)", ErrReferenced, e.Count)
}

func (e *ReferencedError) Is(target error) bool {
	return target == ErrReferenced
}

// BlockingCount extracts the count of a ReferencedError.
func BlockingCount(err error) (int, bool) {
	var refErr *ReferencedError
	if errors.As(err, &refErr) {
		return refErr.Count, true
	}
	return 0, false
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch pqCode(err) {
	case pqUniqueViolation:
		return ErrDuplicateEmail
	case pqForeignKeyViolation:
		return ErrInvalidReference
	default:
		return err
	}
}
