package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrTemporary           = errors.New("temporary failure")
	ErrUnsupportedDocument = errors.New("unsupported document")

	// ErrServiceOverloaded is returned once the extraction service kept failing
	// with transient errors until the retry budget ran out.
	ErrServiceOverloaded  = errors.New("extraction service overloaded, try again later")
	ErrServiceUnavailable = errors.New("extraction service unavailable")
	ErrInvalidResponse    = errors.New("invalid extraction response")
	ErrCancelled          = errors.New("cancelled")
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
