package errors

import "errors"

var (
	ErrNotFound = errors.New("room not found")

	ErrDuplicate = errors.New("room number already exists")

	ErrUnavailable = errors.New("room is not available")

	ErrInUse = errors.New("room is referenced by bookings or bills")
)
