package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/timmy/hrsync/internal/domain"
)

// newTestDB opens a private in-memory database with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	return db
}

func newRun(id string, ft domain.FileType, started time.Time) *domain.ImportRun {
	return domain.NewImportRun(id, ft, domain.TriggerManual, started)
}

func TestRunRepository_OneActiveRunPerFileType(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, newRun("r1", domain.FileTypeAttendance, now)))

	err := repo.Create(ctx, newRun("r2", domain.FileTypeAttendance, now))
	require.Error(t, err)
	var inProgress *domain.RunInProgressError
	require.True(t, errors.As(err, &inProgress))
	assert.Equal(t, "r1", inProgress.RunID)

	// Other file types are independent.
	require.NoError(t, repo.Create(ctx, newRun("r3", domain.FileTypeEmployeeRoster, now)))

	_, err = repo.Fail(ctx, "r1", "connection refused", domain.RunCounts{})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newRun("r4", domain.FileTypeAttendance, now)), "terminal runs free the slot")
}

func TestRunRepository_Transitions(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Create(ctx, newRun("r1", domain.FileTypeEmployeeRoster, now)))

	_, err := repo.Transition(ctx, "r1", domain.RunStatusApproved, nil)
	assert.True(t, domain.IsInvalidTransition(err), "detected cannot be approved")

	run, err := repo.Transition(ctx, "r1", domain.RunStatusPendingApproval, map[string]interface{}{
		"classification": domain.ClassificationBreaking,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPendingApproval, run.Status)
	assert.Equal(t, domain.ClassificationBreaking, run.Classification)

	run, err = repo.Transition(ctx, "r1", domain.RunStatusApproved, map[string]interface{}{
		"approved_by": "admin1",
		"approved_at": now,
	})
	require.NoError(t, err)
	assert.Equal(t, "admin1", run.ApprovedBy)
	require.NotNil(t, run.ApprovedAt)

	_, err = repo.Transition(ctx, "r1", domain.RunStatusApproved, nil)
	assert.True(t, domain.IsInvalidTransition(err), "double approval")
	_, err = repo.Transition(ctx, "r1", domain.RunStatusRejected, nil)
	assert.True(t, domain.IsInvalidTransition(err))

	run, err = repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusApproved, run.Status, "failed transitions leave status unchanged")
	assert.Nil(t, run.ProcessedCount)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = repo.Transition(ctx, "missing", domain.RunStatusFailed, nil)
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRunRepository_CompleteSwapsSnapshot(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	runs := NewRunRepository(db)
	snaps := NewSnapshotRepository(db)
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

	process := func(id string) {
		require.NoError(t, runs.Create(ctx, newRun(id, domain.FileTypeAttendance, now)))
		_, err := runs.Transition(ctx, id, domain.RunStatusAutoAccepted, nil)
		require.NoError(t, err)
		_, err = runs.Transition(ctx, id, domain.RunStatusProcessing, nil)
		require.NoError(t, err)
	}

	process("r1")
	run, err := runs.Complete(ctx, "r1", Completion{
		Counts:   domain.RunCounts{Processed: 3, Inserted: 3},
		Snapshot: &domain.FileStructureSnapshot{Columns: domain.StringArray{"id", "name"}, RowCount: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Nil(t, run.ActiveSlot)
	require.NotNil(t, run.EndedAt)
	assert.Equal(t, domain.RunCounts{Processed: 3, Inserted: 3}, run.Counts())

	snap, err := snaps.Get(ctx, domain.FileTypeAttendance)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "r1", snap.RunID)

	// A run classified against a stale baseline must not overwrite the newer snapshot.
	process("r2")
	_, err = runs.Complete(ctx, "r2", Completion{
		Snapshot:        &domain.FileStructureSnapshot{Columns: domain.StringArray{"id"}, RowCount: 1},
		BaselineVersion: 0,
	})
	assert.ErrorIs(t, err, domain.ErrSnapshotConflict)

	run, err = runs.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusProcessing, run.Status, "status and snapshot roll back together")

	_, err = runs.Complete(ctx, "r2", Completion{
		Snapshot:        &domain.FileStructureSnapshot{Columns: domain.StringArray{"id", "name", "dept"}, RowCount: 4},
		BaselineVersion: 1,
	})
	require.NoError(t, err)
	snap, err = snaps.Get(ctx, domain.FileTypeAttendance)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Version)
	assert.Equal(t, domain.StringArray{"id", "name", "dept"}, snap.Columns)
}

func TestRunRepository_FailKeepsCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newRun("r1", domain.FileTypeAttendance, now)))
	_, err := repo.Transition(ctx, "r1", domain.RunStatusAutoAccepted, nil)
	require.NoError(t, err)
	_, err = repo.Transition(ctx, "r1", domain.RunStatusProcessing, nil)
	require.NoError(t, err)

	run, err := repo.Fail(ctx, "r1", "snapshot conflict", domain.RunCounts{Processed: 100, Inserted: 50, Failed: 50})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Equal(t, "snapshot conflict", run.ErrorSummary)
	assert.Equal(t, domain.RunCounts{Processed: 100, Inserted: 50, Failed: 50}, run.Counts())
	require.NotNil(t, run.UpdatedCount)
	assert.Equal(t, 0, *run.UpdatedCount)

	_, err = repo.Fail(ctx, "r1", "again", domain.RunCounts{})
	assert.True(t, domain.IsInvalidTransition(err), "terminal runs are immutable")
}

func TestRunRepository_PendingAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, ft := range []domain.FileType{domain.FileTypeAttendance, domain.FileTypeEmployeeRoster, domain.FileTypeTerminationReasons} {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, repo.Create(ctx, newRun(id, ft, base.Add(time.Duration(i)*time.Hour))))
		_, err := repo.Transition(ctx, id, domain.RunStatusPendingApproval, nil)
		require.NoError(t, err)
	}
	_, err := repo.Transition(ctx, "r1", domain.RunStatusRejected, map[string]interface{}{"rejected_by": "admin"})
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "r0", pending[0].ID)
	assert.Equal(t, "r2", pending[1].ID)

	history, err := repo.History(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "r2", history[0].ID, "newest first")

	history, err = repo.History(ctx, domain.FileTypeEmployeeRoster, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RunStatusRejected, history[0].Status)
	assert.Equal(t, "admin", history[0].RejectedBy)
}

func TestRunRepository_UpdateRefusesStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(newTestDB(t))
	require.NoError(t, repo.Create(ctx, newRun("r1", domain.FileTypeAttendance, time.Now())))

	assert.Error(t, repo.Update(ctx, "r1", map[string]interface{}{"status": domain.RunStatusCompleted}))
	require.NoError(t, repo.Update(ctx, "r1", map[string]interface{}{"source_file": "a.csv", "row_count": 3}))

	run, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", run.SourceFile)
	assert.Equal(t, 3, run.RowCount)
}

func employee(n int, name string) *domain.Employee {
	e := &domain.Employee{
		RecordKey:      domain.EmployeeKey(n),
		EmployeeNumber: n,
		FirstName:      name,
		Status:         domain.EmployeeStatusActive,
	}
	e.SetProvenance("", "hash-"+name)
	return e
}

func TestRecordStore_UpsertBatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := NewRecordStore[*domain.Employee](db)

	out, err := store.UpsertBatch(ctx, "run-1", []*domain.Employee{employee(1, "Ana"), employee(2, "Luis")})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 0, out.Updated)
	require.Len(t, out.Diffs, 2)
	assert.Equal(t, domain.DiffInsert, out.Diffs[0].Action)
	assert.Equal(t, "employees", out.Diffs[0].Table)

	out, err = store.UpsertBatch(ctx, "run-2", []*domain.Employee{employee(1, "Ana"), employee(2, "Luisa"), employee(3, "Eva")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Inserted)
	assert.Equal(t, 2, out.Updated)
	assert.Equal(t, 1, out.Unchanged)
	require.Len(t, out.Diffs, 2)
	assert.Equal(t, domain.DiffUpdate, out.Diffs[0].Action)
	assert.Equal(t, "hash-Luis", out.Diffs[0].OldHash)
	assert.Equal(t, "run-2", out.Diffs[0].RunID)

	var stored domain.Employee
	require.NoError(t, db.Where("record_key = ?", "2").Take(&stored).Error)
	assert.Equal(t, "Luisa", stored.FirstName)

	var count int64
	require.NoError(t, db.Model(&domain.Employee{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestRecordStore_FailedBatchWritesNothing(t *testing.T) {
	db := newTestDB(t)
	store := NewRecordStore[*domain.Employee](db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.UpsertBatch(ctx, "run-1", []*domain.Employee{employee(1, "Ana")})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&domain.Employee{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFileVersionAndIssues(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	versions := NewFileVersionRepository(db)
	issues := NewIssueRepository(db)
	runs := NewRunRepository(db)
	now := time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)

	v := &domain.FileVersion{FileType: domain.FileTypeAttendance, OriginalName: "a.csv", VersionedName: "a_x.csv", Checksum: "abc", DownloadedAt: now}
	require.NoError(t, versions.Create(ctx, v))

	found, err := versions.FindProcessed(ctx, domain.FileTypeAttendance, "abc")
	require.NoError(t, err)
	assert.Nil(t, found, "not processed yet")

	run := newRun("r1", domain.FileTypeAttendance, now)
	run.FileVersionID = &v.ID
	require.NoError(t, runs.Create(ctx, run))
	_, err = runs.Complete(ctx, "r1", Completion{})
	require.NoError(t, err)

	found, err = versions.FindProcessed(ctx, domain.FileTypeAttendance, "abc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Processed)

	list, err := versions.ListByFileType(ctx, domain.FileTypeAttendance, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	rows := make([]domain.ImportError, 250)
	for i := range rows {
		rows[i] = domain.ImportError{RunID: "r1", RowNumber: i + 1, Severity: domain.SeverityWarning, ErrorType: domain.IssueInvalidDate, RawData: domain.RawRow{"Fecha": "x"}}
	}
	require.NoError(t, issues.SaveErrors(ctx, rows))
	got, err := issues.ListErrors(ctx, "r1", 1000)
	require.NoError(t, err)
	require.Len(t, got, 250)
	assert.Equal(t, "x", got[0].RawData["Fecha"])

	require.NoError(t, issues.SaveDiffs(ctx, []domain.RecordDiff{{RunID: "r1", Table: "employees", RecordKey: "1", Action: domain.DiffInsert, NewHash: "h"}}))
	diffs, err := issues.ListDiffs(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Len(t, diffs, 1)
}

func TestScheduleRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewScheduleRepository(newTestDB(t))

	s, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, repo.Save(ctx, &domain.SyncSchedule{Frequency: domain.FrequencyDaily, RunTime: "03:00"}))
	require.NoError(t, repo.Save(ctx, &domain.SyncSchedule{Frequency: domain.FrequencyWeekly, DayOfWeek: "friday", RunTime: "04:00"}))

	s, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, domain.FrequencyWeekly, s.Frequency)
	assert.Equal(t, "friday", s.DayOfWeek)
}
