package service

import (
	"errors"
	"fmt"

	"github.com/timmy/hrsync/internal/domain"
)

// RunFailedError is returned with a run that was recorded as failed. Err is the cause,
// e.g. a *source.ConnectionError or a *decoder.DecodeError.
type RunFailedError struct {
	RunID string
	Err   error
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s failed: %v", e.RunID, e.Err)
}

func (e *RunFailedError) Unwrap() error { return e.Err }

// IsRunFailed reports whether err carries a recorded run failure.
func IsRunFailed(err error) bool {
	var target *RunFailedError
	return errors.As(err, &target)
}

// ChecksumMismatchError means the file read at resume is not the file that was approved.
type ChecksumMismatchError struct {
	Approved string
	Current  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("file changed since approval: checksum %s, approved %s", short(e.Current), short(e.Approved))
}

// UnknownFileTypeError is returned for a file type with no configured pipeline.
type UnknownFileTypeError struct {
	FileType domain.FileType
}

func (e *UnknownFileTypeError) Error() string {
	return fmt.Sprintf("unknown file type %q", e.FileType)
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
