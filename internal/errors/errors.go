package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Klip error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"        // 404
	ErrUnsupportedPayload   ErrorCode = "UNSUPPORTED_PAYLOAD"   // 415
	ErrAssetIO              ErrorCode = "ASSET_IO"              // 500
	ErrInternal             ErrorCode = "INTERNAL"              // 500
	ErrClipboardUnavailable ErrorCode = "CLIPBOARD_UNAVAILABLE" // 503
)

// KlipError represents a structured error with code, status, and details.
type KlipError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *KlipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *KlipError {
	return &KlipError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a history entry cannot be found.
func NewNotFound(id string) *KlipError {
	return &KlipError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("entry not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *KlipError {
	return &KlipError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewUnsupportedPayload creates a 415 error for content that cannot be captured or pasted.
func NewUnsupportedPayload(kind string) *KlipError {
	return &KlipError{
		Code:    ErrUnsupportedPayload,
		Status:  415,
		Message: fmt.Sprintf("unsupported clipboard payload: %s", kind),
		Details: map[string]any{"kind": kind},
	}
}

// NewAssetIO creates a 500 error for asset file read/write failures.
func NewAssetIO(path string, err error) *KlipError {
	msg := "asset I/O failed"
	if err != nil {
		msg = fmt.Sprintf("asset I/O failed: %v", err)
	}
	return &KlipError{
		Code:    ErrAssetIO,
		Status:  500,
		Message: msg,
		Details: map[string]any{"path": path},
	}
}

// NewClipboardUnavailable creates a 503 error when the host clipboard cannot be read or written.
func NewClipboardUnavailable(err error) *KlipError {
	msg := "clipboard unavailable"
	if err != nil {
		msg = fmt.Sprintf("clipboard unavailable: %v", err)
	}
	return &KlipError{
		Code:    ErrClipboardUnavailable,
		Status:  503,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *KlipError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &KlipError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// As returns the KlipError in err's chain, if any.
func As(err error) (*KlipError, bool) {
	var kErr *KlipError
	if stderrors.As(err, &kErr) {
		return kErr, true
	}
	return nil, false
}

// Is checks if an error (or any error it wraps) is a KlipError with the given code.
func Is(err error, code ErrorCode) bool {
	if kErr, ok := As(err); ok {
		return kErr.Code == code
	}
	return false
}
