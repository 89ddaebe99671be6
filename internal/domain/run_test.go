package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from RunStatus
		to   RunStatus
		want bool
	}{
		{RunStatusDetected, RunStatusAutoAccepted, true},
		{RunStatusDetected, RunStatusPendingApproval, true},
		{RunStatusDetected, RunStatusFailed, true},
		{RunStatusPendingApproval, RunStatusApproved, true},
		{RunStatusPendingApproval, RunStatusRejected, true},
		{RunStatusAutoAccepted, RunStatusProcessing, true},
		{RunStatusApproved, RunStatusProcessing, true},
		{RunStatusProcessing, RunStatusCompleted, true},
		{RunStatusProcessing, RunStatusFailed, true},

		{RunStatusApproved, RunStatusApproved, false},
		{RunStatusApproved, RunStatusPendingApproval, false},
		{RunStatusAutoAccepted, RunStatusApproved, false},
		{RunStatusProcessing, RunStatusDetected, false},
		{RunStatusRejected, RunStatusApproved, false},
		{RunStatusCompleted, RunStatusProcessing, false},
		{RunStatusFailed, RunStatusProcessing, false},
		{RunStatusDetected, RunStatusProcessing, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRunStatus_TerminalHasNoEdges(t *testing.T) {
	for _, s := range []RunStatus{RunStatusCompleted, RunStatusFailed, RunStatusRejected} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, transitions[s], "terminal status %s must not have outgoing edges", s)
	}
	for _, s := range NonTerminalStatuses {
		assert.False(t, s.IsTerminal())
	}
}

func TestNewImportRun_HoldsSlot(t *testing.T) {
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	run := NewImportRun("r1", FileTypeAttendance, TriggerManual, now)

	require.NotNil(t, run.ActiveSlot)
	assert.Equal(t, "attendance", *run.ActiveSlot)
	assert.Equal(t, RunStatusDetected, run.Status)
	assert.Nil(t, run.ProcessedCount)
	assert.Equal(t, RunCounts{}, run.Counts())
}

func TestTypedErrors(t *testing.T) {
	err := fmt.Errorf("approve: %w", &InvalidTransitionError{RunID: "r1", From: RunStatusCompleted, To: RunStatusApproved})
	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsRunInProgress(err))

	err = fmt.Errorf("start: %w", &RunInProgressError{FileType: FileTypeAttendance, RunID: "r2", Status: RunStatusProcessing})
	assert.True(t, IsRunInProgress(err))
	assert.Contains(t, err.Error(), "r2")

	assert.False(t, IsInvalidTransition(errors.New("other")))
}

func TestVersionedFileName(t *testing.T) {
	at := time.Date(2024, 5, 1, 2, 3, 4, 0, time.UTC)
	assert.Equal(t, "Prenomina Horizontal_2024_05_01_02_03_04.csv", VersionedFileName("Prenomina Horizontal.csv", at))
	assert.Equal(t, "noext_2024_05_01_02_03_04", VersionedFileName("noext", at))
}

func TestKeys(t *testing.T) {
	d := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "101", EmployeeKey(101))
	assert.Equal(t, "101|2024-05-01", TerminationKey(101, &d))
	assert.Equal(t, "101|", TerminationKey(101, nil))
	assert.Equal(t, "7|2024-05-01", AttendanceKey(7, d))
}
