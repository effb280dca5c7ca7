package errors

import "errors"

var (
	ErrNotFound = errors.New("payment not found")

	ErrInvalidID = errors.New("invalid payment ID format")

	ErrAlreadyPaid = errors.New("bill is already paid")

	ErrAlreadyVerifying = errors.New("bill already has a payment under review")

	ErrNotVerifying = errors.New("bill has no payment under review")

	ErrNotOwner = errors.New("bill belongs to another customer")

	ErrSlipRequired = errors.New("payment slip is required")
)
