package errors

import "errors"

var (
	ErrNotFound = errors.New("bill not found")

	ErrInvalidID = errors.New("invalid bill ID format")

	ErrDuplicateBill = errors.New("bill already exists for room and period")

	ErrStateChanged = errors.New("bill status changed concurrently")

	ErrNoOccupant = errors.New("room has no approved occupant to bill")

	ErrNotDeletable = errors.New("only unpaid bills without payments can be deleted")
)
