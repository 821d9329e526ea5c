package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTemporary    = errors.New("temporary failure")

	// Scraper failure kinds.
	ErrValidation = errors.New("invalid url")
	ErrWhitelist  = errors.New("url not allow-listed")
	ErrFetch      = errors.New("fetch failed")
	ErrQuality    = errors.New("insufficient content")

	ErrCollectionUnavailable = errors.New("collection unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
