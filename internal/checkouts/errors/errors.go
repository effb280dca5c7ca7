package errors

import "errors"

var (
	ErrNotFound = errors.New("checkout not found")

	ErrInvalidID = errors.New("invalid checkout ID format")

	ErrAlreadyPending = errors.New("booking already has a pending checkout")

	ErrAlreadyCompleted = errors.New("checkout is already completed")

	ErrNotEligible = errors.New("booking is not checked in or already checked out")

	ErrStateChanged = errors.New("checkout changed concurrently")
)
