package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// GoogleVerifier validates Google ID tokens against the configured OAuth
// client ID and uses the token's "sub" claim as the subject.
type GoogleVerifier struct {
	clientID string
	verifier googleAuthIDTokenVerifier.Verifier
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidCredential
	}

	// The library fetches Google's certificates without a context.
	done := make(chan error, 1)
	go func() {
		done <- g.verifier.VerifyIDToken(token, []string{g.clientID})
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, classify(err)
		}
	}

	claimSet, err := googleAuthIDTokenVerifier.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claimSet.Sub == "" {
		return nil, ErrInvalidCredential
	}

	return &Identity{
		Subject: claimSet.Sub,
		Name:    claimSet.Name,
		Email:   claimSet.Email,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, googleAuthIDTokenVerifier.ErrTokenUsedTooLate):
		return fmt.Errorf("%w: %v", ErrExpiredCredential, err)
	case errors.Is(err, googleAuthIDTokenVerifier.ErrInvalidToken),
		errors.Is(err, googleAuthIDTokenVerifier.ErrWrongSignature),
		errors.Is(err, googleAuthIDTokenVerifier.ErrInvalidAudience),
		errors.Is(err, googleAuthIDTokenVerifier.ErrInvalidIssuer),
		errors.Is(err, googleAuthIDTokenVerifier.ErrTokenUsedTooEarly),
		errors.Is(err, googleAuthIDTokenVerifier.ErrPublicKeyNotFound):
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
