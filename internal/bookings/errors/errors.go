package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrStateChanged = errors.New("booking changed concurrently")

	ErrAlreadyDecided = errors.New("booking has already been approved or rejected")

	ErrNotApproved = errors.New("booking is not approved")

	ErrAlreadyCheckedIn = errors.New("booking is already checked in")

	ErrInvalidDates = errors.New("checkout date must be after checkin date")
)
