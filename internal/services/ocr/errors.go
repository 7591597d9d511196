// Package ocr provides document analysis through Azure Document Intelligence
// with retry handling and structured error classification.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies an analysis failure. Kinds are derived from the
// transport outcome (HTTP status, error type), never from message text.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "INVALID_INPUT"
	KindNetworkError      ErrorKind = "NETWORK_ERROR"
	KindServiceError      ErrorKind = "SERVICE_ERROR"
	KindTimeout           ErrorKind = "TIMEOUT"
	KindUnsupportedFormat ErrorKind = "UNSUPPORTED_FORMAT"
	KindFileTooLarge      ErrorKind = "FILE_TOO_LARGE"
	KindUnknown           ErrorKind = "UNKNOWN_ERROR"
)

// Error is an analysis failure with its classification.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ocr: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ocr: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed. Input problems
// are permanent; transport and service failures are worth retrying.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindInvalidInput, KindUnsupportedFormat, KindFileTooLarge:
		return false
	default:
		return true
	}
}

// KindOf extracts the classification of an error, defaulting to unknown.
func KindOf(err error) ErrorKind {
	var ocrErr *Error
	if errors.As(err, &ocrErr) {
		return ocrErr.Kind
	}
	return KindUnknown
}

// classifyStatus maps a non-success HTTP response to an error kind.
func classifyStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusBadRequest:
		return KindInvalidInput
	case statusCode == http.StatusRequestEntityTooLarge:
		return KindFileTooLarge
	case statusCode == http.StatusUnsupportedMediaType:
		return KindUnsupportedFormat
	case statusCode == http.StatusRequestTimeout:
		return KindTimeout
	case statusCode == http.StatusTooManyRequests:
		return KindServiceError
	case statusCode >= 500:
		return KindServiceError
	default:
		return KindUnknown
	}
}

// classifyTransportError maps a request-level failure to an error kind using
// the error's type.
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetworkError
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindNetworkError
	}

	return KindUnknown
}
