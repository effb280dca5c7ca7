// Package blob stores uploaded proof-of-payment slips and returns a
// retrievable URL for each.
package blob

import (
	"context"
	"errors"
	"strings"
)

const MaxSlipSize = 5 * 1024 * 1024

var (
	ErrEmpty           = errors.New("empty upload")
	ErrTooLarge        = errors.New("upload exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrForeignURL      = errors.New("url does not belong to this storage")
)

type Storage interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ExtensionFor returns the file extension for an accepted slip content type.
func ExtensionFor(contentType string) (string, bool) {
	ct, _, _ := strings.Cut(contentType, ";")
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(ct))]
	return ext, ok
}

// Check validates a slip before it is uploaded.
func Check(data []byte, contentType string) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxSlipSize {
		return ErrTooLarge
	}
	if _, ok := ExtensionFor(contentType); !ok {
		return ErrUnsupportedType
	}
	return nil
}
