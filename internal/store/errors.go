package store

import "errors"

var (
	// ErrRequestNotFound indicates the analysis request does not exist.
	ErrRequestNotFound = errors.New("analysis request not found")

	// ErrItemNotFound indicates the content item does not exist.
	ErrItemNotFound = errors.New("content item not found")

	// ErrAlreadyClaimed indicates another runner holds a claim (or a terminal
	// non-error record exists) for the same (item, request) pair. Callers
	// treat this as "skip", not as a failure.
	ErrAlreadyClaimed = errors.New("annotation already claimed")

	// ErrRecordFinalized indicates an attempt to transition a record that has
	// already reached a terminal state. Terminal records are immutable.
	ErrRecordFinalized = errors.New("annotation record already finalized")
)
