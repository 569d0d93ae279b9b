package findhub

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when an ingest or search request is
	// missing required fields or carries a malformed vector.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when no record exists for the requested
	// identifier.
	ErrNotFound = errors.New("record not found")
)

// ErrPartialIngest indicates an ingest that persisted the vector but
// failed to persist the metadata record. The vector stays in the index
// and its identifier is never reused; the stores disagree by one until
// the journal repairs them on the next Open.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrPartialIngest struct {
	VecID uint32
	cause error
}

func (e *ErrPartialIngest) Error() string {
	return fmt.Sprintf("partial ingest: vector %d persisted, metadata write failed: %v", e.VecID, e.cause)
}

func (e *ErrPartialIngest) Unwrap() error { return e.cause }
