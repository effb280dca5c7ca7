// Package identity resolves an opaque bearer credential into the stable
// subject of the person presenting it.
package identity

import (
	"context"
	"errors"
	apperrors "smartdorm/pkg/errors"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrExpiredCredential = errors.New("expired credential")
	ErrUnavailable       = errors.New("identity provider unavailable")
)

type Identity struct {
	Subject string
	Name    string
	Email   string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// AppError maps verifier failures onto API errors: bad or expired
// credentials are the caller's fault, everything else is upstream.
func AppError(err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, ErrExpiredCredential):
		return apperrors.Unauthorized("credential has expired").WithCause(err)
	case errors.Is(err, ErrInvalidCredential):
		return apperrors.Unauthorized("credential is invalid").WithCause(err)
	default:
		return apperrors.Upstream("identity provider", err)
	}
}
