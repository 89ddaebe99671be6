package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/source"
)

// scriptedStarter returns the queued errors of a file type in order, then succeeds.
type scriptedStarter struct {
	mu    sync.Mutex
	errs  map[domain.FileType][]error
	calls map[domain.FileType]int
	opts  []StartOptions
}

func newScriptedStarter() *scriptedStarter {
	return &scriptedStarter{errs: map[domain.FileType][]error{}, calls: map[domain.FileType]int{}}
}

func (s *scriptedStarter) StartRun(_ context.Context, ft domain.FileType, opts StartOptions) (*domain.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[ft]++
	s.opts = append(s.opts, opts)

	run := &domain.ImportRun{ID: string(ft), FileType: ft, Status: domain.RunStatusCompleted}
	if queue := s.errs[ft]; len(queue) > 0 {
		err := queue[0]
		s.errs[ft] = queue[1:]
		run.Status = domain.RunStatusFailed
		return run, err
	}
	return run, nil
}

func unreachable() error {
	return &RunFailedError{RunID: "r", Err: &source.ConnectionError{Op: "list", Err: errors.New("connection refused")}}
}

func newTestScheduler(t *testing.T, starter RunStarter, cfg SchedulerConfig) *Scheduler {
	t.Helper()
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return NewScheduler(newTestDB(t), starter, cfg)
}

func TestScheduler_TickRunsWhenDue(t *testing.T) {
	ctx := context.Background()
	starter := newScriptedStarter()
	s := newTestScheduler(t, starter, SchedulerConfig{
		Default: domain.SyncSchedule{Frequency: domain.FrequencyDaily, RunTime: "02:00"},
	})
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	sched, err := s.GetSchedule(ctx)
	require.NoError(t, err)
	require.NotNil(t, sched.NextRunAt)
	assert.True(t, time.Date(2024, 5, 2, 2, 0, 0, 0, time.UTC).Equal(*sched.NextRunAt))
	assert.Equal(t, "system", sched.UpdatedBy)

	ran, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, starter.calls)

	s.now = func() time.Time { return time.Date(2024, 5, 2, 2, 0, 30, 0, time.UTC) }
	ran, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	for _, ft := range domain.AllFileTypes {
		assert.Equal(t, 1, starter.calls[ft])
	}
	for _, o := range starter.opts {
		assert.Equal(t, domain.TriggerSchedule, o.Trigger)
		assert.False(t, o.Force)
	}

	sched, err = s.GetSchedule(ctx)
	require.NoError(t, err)
	require.NotNil(t, sched.LastRunAt)
	assert.Equal(t, "employee-roster: completed; termination-reasons: completed; attendance: completed", sched.LastResult)
	assert.True(t, time.Date(2024, 5, 3, 2, 0, 0, 0, time.UTC).Equal(*sched.NextRunAt))
}

func TestScheduler_ManualNeverRuns(t *testing.T) {
	starter := newScriptedStarter()
	s := newTestScheduler(t, starter, SchedulerConfig{Default: domain.SyncSchedule{Frequency: "bogus"}})

	ran, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	sched, err := s.GetSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyManual, sched.Frequency)
	assert.Nil(t, sched.NextRunAt)
}

func TestScheduler_UpdateSchedule(t *testing.T) {
	s := newTestScheduler(t, newScriptedStarter(), SchedulerConfig{})
	// Wednesday
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	sched, err := s.UpdateSchedule(context.Background(), domain.SyncSchedule{
		Frequency: "Weekly",
		DayOfWeek: "Friday",
		RunTime:   "25:70",
	}, "admin1")
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyWeekly, sched.Frequency)
	assert.Equal(t, "friday", sched.DayOfWeek)
	assert.Equal(t, "23:59", sched.RunTime)
	assert.Equal(t, "admin1", sched.UpdatedBy)
	require.NotNil(t, sched.NextRunAt)
	assert.True(t, time.Date(2024, 5, 3, 23, 59, 0, 0, time.UTC).Equal(*sched.NextRunAt))
}

func TestScheduler_RetriesOnlyConnectionErrors(t *testing.T) {
	starter := newScriptedStarter()
	starter.errs[domain.FileTypeEmployeeRoster] = []error{unreachable(), unreachable()}
	starter.errs[domain.FileTypeAttendance] = []error{&RunFailedError{RunID: "r", Err: errors.New("bad header")}}

	s := newTestScheduler(t, starter, SchedulerConfig{MaxRetry: time.Second, InitialRetry: time.Millisecond})
	outcomes := s.SyncAll(context.Background(), domain.TriggerManual)
	require.Len(t, outcomes, 3)

	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, domain.RunStatusCompleted, outcomes[0].Run.Status)

	assert.Equal(t, 1, outcomes[1].Attempts)
	assert.NoError(t, outcomes[1].Err)

	assert.Equal(t, 1, outcomes[2].Attempts, "non-connection failures are not retried")
	assert.True(t, IsRunFailed(outcomes[2].Err))
	assert.Equal(t, domain.RunStatusFailed, outcomes[2].Run.Status)
}

func TestScheduler_NoRetryBudget(t *testing.T) {
	starter := newScriptedStarter()
	starter.errs[domain.FileTypeTerminationReasons] = []error{unreachable()}

	s := newTestScheduler(t, starter, SchedulerConfig{})
	outcomes := s.SyncAll(context.Background(), domain.TriggerManual)

	assert.Equal(t, 1, outcomes[1].Attempts)
	assert.True(t, source.IsConnectionError(outcomes[1].Err))
	assert.Contains(t, Summarize(outcomes), "termination-reasons: failed")
}

func TestScheduler_CancelledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	starter := newScriptedStarter()
	s := newTestScheduler(t, starter, SchedulerConfig{})
	outcomes := s.SyncAll(ctx, domain.TriggerManual)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.Zero(t, o.Attempts)
	}
	assert.Empty(t, starter.calls)
}

func TestSummarize(t *testing.T) {
	got := Summarize([]SyncOutcome{
		{FileType: domain.FileTypeEmployeeRoster, Run: &domain.ImportRun{Status: domain.RunStatusPendingApproval}},
		{FileType: domain.FileTypeAttendance, Err: errors.New("boom")},
		{FileType: domain.FileTypeTerminationReasons},
	})
	assert.Equal(t, "employee-roster: pending_approval; attendance: error (boom); termination-reasons: skipped", got)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestScheduler(t, newScriptedStarter(), SchedulerConfig{PollInterval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
