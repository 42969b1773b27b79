package utils

import (
	"errors"
)

var (
	ErrInvalidURL           = errors.New("invalid URL provided")
	ErrDownloadFailed       = errors.New("download failed")
	ErrDuplicateDownload    = errors.New("download already queued")
	ErrNoConnectivity       = errors.New("no network connectivity")
	ErrInsufficientSpace    = errors.New("insufficient disk space")
	ErrDatabaseError        = errors.New("database operation failed")
	ErrExternalServiceError = errors.New("external service error")
	ErrConfigurationError   = errors.New("configuration error")
	ErrTerminationTimeout   = errors.New("process tree did not terminate in time")
)

type WrappedError struct {
	Err     error
	Message string
	Context map[string]any
}

func (w *WrappedError) Error() string {
	if w.Message != "" {
		return w.Message + ": " + w.Err.Error()
	}
	return w.Err.Error()
}

func (w *WrappedError) Unwrap() error {
	return w.Err
}

func WrapError(err error, message string, ctx map[string]any) error {
	return &WrappedError{
		Err:     err,
		Message: message,
		Context: ctx,
	}
}

// RootError returns the innermost error in the chain (for user-facing messages without wrapper text).
func RootError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		err = e
	}
	return err
}

// DownloadErrorMessage returns a human-readable message for download errors.
// Use from both API and notifications so the same message shape is shown.
func DownloadErrorMessage(err error) string {
	return RootError(err).Error()
}
