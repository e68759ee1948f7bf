// Package errors provides common domain error types for grantqa.
//
// This package defines sentinel errors for conditions like "not found" or
// "timed out" that are shared by the store, the query services and the HTTP
// layer. Using typed errors enables consistent handling with errors.Is().
//
// Usage:
//
//	import pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
//
//	// Return a domain error
//	return nil, fmt.Errorf("get organization %s: %w", id, pferrors.ErrNotFound)
//
//	// Check for domain errors
//	if pferrors.IsTimeout(err) {
//	    // report a timed out query
//	}
package errors

import (
	"context"
	"errors"
)

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested record was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state,
	// e.g. reviewing a duplicate candidate that has already been decided.
	ErrInvalidState = errors.New("invalid state")

	// ErrTimeout indicates a store query exceeded its time budget.
	ErrTimeout = errors.New("query timed out")

	// ErrUnavailable indicates the backing store failed to answer.
	ErrUnavailable = errors.New("store unavailable")
)

// Error kinds reported to API clients.
const (
	KindNotFound     = "not_found"
	KindValidation   = "validation"
	KindInvalidState = "invalid_state"
	KindTimeout      = "timeout"
	KindStore        = "store_error"
	KindInternal     = "internal"
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsTimeout reports whether err is ErrTimeout or a context deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsUnavailable reports whether any error in err's chain is ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Kind maps an error to the short kind string used in API responses.
// A nil error has no kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return KindNotFound
	case IsValidation(err):
		return KindValidation
	case IsInvalidState(err):
		return KindInvalidState
	case IsTimeout(err):
		return KindTimeout
	case IsUnavailable(err):
		return KindStore
	default:
		return KindInternal
	}
}
