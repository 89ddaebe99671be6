package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound is returned when a run id does not exist.
	ErrRunNotFound = errors.New("import run not found")

	// ErrSnapshotConflict means the structure snapshot moved after the run read its baseline.
	ErrSnapshotConflict = errors.New("structure snapshot changed since the run started")

	// ErrActorRequired is returned when an approval decision names no operator.
	ErrActorRequired = errors.New("actor is required")
)

// InvalidTransitionError is returned when an operation asks for a state change the
// run state machine does not allow. The run is left untouched.
type InvalidTransitionError struct {
	RunID string
	From  RunStatus
	To    RunStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("run %s: invalid transition %s -> %s", e.RunID, e.From, e.To)
}

// RunInProgressError is returned when a run is started while another run for the
// same file type has not reached a terminal status.
type RunInProgressError struct {
	FileType FileType
	RunID    string
	Status   RunStatus
}

func (e *RunInProgressError) Error() string {
	if e.RunID == "" {
		return fmt.Sprintf("a run for %s is already in progress", e.FileType)
	}
	return fmt.Sprintf("run %s for %s is already in progress (status %s)", e.RunID, e.FileType, e.Status)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// IsRunInProgress reports whether err is a RunInProgressError.
func IsRunInProgress(err error) bool {
	var target *RunInProgressError
	return errors.As(err, &target)
}
