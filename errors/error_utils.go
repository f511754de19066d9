// Package errors provides the coded error type used throughout the state core and helpers for
// categorizing errors.
package errors

import (
	"context"
	"errors"
)

// IsRetryableError determines if an error is transient and the operation should be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check if context was cancelled - not retryable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		}
	}

	return false
}

// IsBlockRejection reports whether err rejects a submitted block without affecting any state.
// The submitter may retry with different data, but the same block will be rejected again.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if the block was rejected for data-dependent reasons
func IsBlockRejection(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_AMOUNT_RANGE,
			ERR_BLOCK_INVALID,
			ERR_BLOCK_EXISTS,
			ERR_BLOCK_PARENT_NOT_FOUND,
			ERR_TX_INVALID,
			ERR_TX_MISSING_INPUT,
			ERR_TX_INVALID_DOUBLE_SPEND:
			return true
		}
	}

	return false
}

// IsStructuralError reports whether err, usually a recovered panic value, signals that
// apply and revert have gone out of sync.
func IsStructuralError(err error) bool {
	if err == nil {
		return false
	}

	var tErr *Error
	if As(err, &tErr) {
		return tErr.Code() == ERR_STRUCTURAL
	}

	return false
}

// IsTemporaryError determines if an error is temporary and might succeed if retried later.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error is temporary
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	type temporary interface {
		Temporary() bool
	}

	if te, ok := err.(temporary); ok {
		return te.Temporary()
	}

	var tErr *Error
	if As(err, &tErr) {
		switch tErr.Code() {
		case ERR_SERVICE_UNAVAILABLE,
			ERR_STORAGE_UNAVAILABLE:
			return true
		}
	}

	return false
}

// IsContextError determines if an error is related to context cancellation or deadline.
func IsContextError(err error) bool {
	if err == nil {
		return false
	}

	if err == context.Canceled || err == context.DeadlineExceeded {
		return true
	}

	var tErr *Error
	if As(err, &tErr) {
		if tErr.Code() == ERR_CONTEXT_CANCELED {
			return true
		}
	}

	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// GetErrorCategory returns a string representing the category of the error.
// This is used as a metrics label.
//
// Parameters:
//   - err: Error to categorize
//
// Returns:
//   - string: Error category (e.g., "context", "block", "transaction", "storage", "state", "unknown")
func GetErrorCategory(err error) string {
	if err == nil {
		return "none"
	}

	if IsContextError(err) {
		return "context"
	}

	if IsTemporaryError(err) {
		return "temporary"
	}

	var tErr *Error
	if As(err, &tErr) {
		code := tErr.Code()
		switch {
		case code >= 10 && code <= 19:
			return "block"
		case code >= 30 && code <= 49:
			return "transaction"
		case code >= 50 && code <= 59:
			return "service"
		case code >= 60 && code <= 69:
			return "storage"
		case code >= 70 && code <= 79:
			return "utxo"
		case code >= 100 && code <= 109:
			return "state"
		}
	}

	return "unknown"
}
