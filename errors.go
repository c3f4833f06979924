package commentable

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an item is not found in DynamoDB operations
	// that require it to exist.
	ErrNotFound = errors.New("item not found")

	// ErrRecordInvalid is returned when a stored item is missing a required
	// attribute or holds it with the wrong wire type.
	ErrRecordInvalid = errors.New("record invalid")

	// ErrCorruptRecord is returned when a stored attribute is present but
	// cannot be decoded, such as a malformed timestamp.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrStore is returned when a call to the store itself fails.
	ErrStore = errors.New("store error")

	// ErrConflict is returned when a conditional create collides with an
	// existing item.
	ErrConflict = errors.New("item already exists")

	// ErrInvalidParent is returned when a reply references a comment that does
	// not exist in the same partition.
	ErrInvalidParent = errors.New("parent comment not found")

	// ErrInconsistent is returned when the stored comment graph cannot be
	// assembled into a forest.
	ErrInconsistent = errors.New("inconsistent data")

	// ErrPartialFailure is returned when a bounded batch operation gives up
	// before every item was processed.
	ErrPartialFailure = errors.New("partial failure")
)

// FieldError reports a problem decoding a single attribute of a stored item.
type FieldError struct {
	Field string // attribute name
	Err   error  // ErrRecordInvalid or ErrCorruptRecord
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrCorruptRecord) {
		return fmt.Sprintf("error parsing field '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("missing field '%s': %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func missingField(name string) error {
	return &FieldError{Field: name, Err: ErrRecordInvalid}
}

// PartialDeleteError is returned by batch deletes that exhausted their retry
// ceiling. The operation is safe to retry with the Remaining keys.
type PartialDeleteError struct {
	Deleted   int   // number of keys confirmed deleted
	Total     int   // number of keys requested
	Attempts  int   // number of batch calls issued
	Remaining []Key // keys still unprocessed
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("batch delete: %d of %d deleted after %d attempts", e.Deleted, e.Total, e.Attempts)
}

func (e *PartialDeleteError) Unwrap() error {
	return ErrPartialFailure
}

// Retryable reports whether resubmitting the remaining keys may succeed.
func (e *PartialDeleteError) Retryable() bool {
	return len(e.Remaining) > 0
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
