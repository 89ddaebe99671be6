package domain

import "time"

// RunStatus is a state of the import run state machine.
type RunStatus string

const (
	RunStatusDetected        RunStatus = "detected"
	RunStatusAutoAccepted    RunStatus = "auto_accepted"
	RunStatusPendingApproval RunStatus = "pending_approval"
	RunStatusApproved        RunStatus = "approved"
	RunStatusRejected        RunStatus = "rejected"
	RunStatusProcessing      RunStatus = "processing"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
)

// NonTerminalStatuses are the statuses that hold the per-file-type run slot.
var NonTerminalStatuses = []RunStatus{
	RunStatusDetected,
	RunStatusAutoAccepted,
	RunStatusPendingApproval,
	RunStatusApproved,
	RunStatusProcessing,
}

// transitions is the complete edge set of the run state machine.
// detected -> completed is the skip path for a file whose checksum was already imported.
var transitions = map[RunStatus][]RunStatus{
	RunStatusDetected:        {RunStatusAutoAccepted, RunStatusPendingApproval, RunStatusFailed, RunStatusCompleted},
	RunStatusAutoAccepted:    {RunStatusProcessing, RunStatusFailed},
	RunStatusPendingApproval: {RunStatusApproved, RunStatusRejected},
	RunStatusApproved:        {RunStatusProcessing, RunStatusFailed},
	RunStatusProcessing:      {RunStatusCompleted, RunStatusFailed},
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusRejected
}

// Classification is the outcome of comparing a file's structure with its baseline.
type Classification string

const (
	ClassificationUnchanged Classification = "unchanged"
	ClassificationAdditive  Classification = "additive"
	ClassificationBreaking  Classification = "breaking"
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerManual   RunTrigger = "manual"
	TriggerSchedule RunTrigger = "schedule"
	TriggerAPI      RunTrigger = "api"
)

// ImportRun is one attempt to ingest one logical file. It is the ledger row for the run.
//
// Counts stay NULL until the run reaches completed or failed. ActiveSlot holds the
// file type while the run is non-terminal; its unique index lets the store refuse a
// second in-flight run for the same file type.
type ImportRun struct {
	ID         string     `gorm:"type:text;primaryKey" json:"id"`
	FileType   FileType   `gorm:"type:text;not null;index" json:"file_type"`
	SourceFile string     `gorm:"type:text" json:"source_file,omitempty"`
	Status     RunStatus  `gorm:"type:text;not null;index" json:"status"`
	Trigger    RunTrigger `gorm:"type:text" json:"trigger,omitempty"`
	ActiveSlot *string    `gorm:"type:text;uniqueIndex" json:"-"`

	Classification   Classification `gorm:"type:text" json:"classification,omitempty"`
	AddedColumns     StringArray    `gorm:"type:text" json:"added_columns,omitempty"`
	RemovedColumns   StringArray    `gorm:"type:text" json:"removed_columns,omitempty"`
	RowCount         int            `json:"row_count"`
	DroppedRows      int            `json:"dropped_rows"`
	BaselineRowCount *int           `json:"baseline_row_count,omitempty"`
	BaselineVersion  int            `json:"baseline_version"`
	ChangeSummary    string         `gorm:"type:text" json:"change_summary,omitempty"`
	Checksum         string         `gorm:"type:text;index" json:"checksum,omitempty"`
	FileVersionID    *uint          `json:"file_version_id,omitempty"`

	ProcessedCount *int `json:"processed,omitempty"`
	InsertedCount  *int `json:"inserted,omitempty"`
	UpdatedCount   *int `json:"updated,omitempty"`
	FailedCount    *int `json:"failed,omitempty"`
	UnchangedCount *int `json:"unchanged,omitempty"`
	WarningCount   int  `json:"warnings"`

	ErrorSummary string     `gorm:"type:text" json:"error_summary,omitempty"`
	ApprovedBy   string     `gorm:"type:text" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectedBy   string     `gorm:"type:text" json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ImportRun.
func (ImportRun) TableName() string {
	return "import_runs"
}

// RunCounts are the write counters a run accumulates while processing.
type RunCounts struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
	Unchanged int `json:"unchanged"`
}

// Counts returns the stored counters, zero while the run is not terminal.
func (r *ImportRun) Counts() RunCounts {
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	return RunCounts{
		Processed: deref(r.ProcessedCount),
		Inserted:  deref(r.InsertedCount),
		Updated:   deref(r.UpdatedCount),
		Failed:    deref(r.FailedCount),
		Unchanged: deref(r.UnchangedCount),
	}
}

// NewImportRun builds a run in the detected state that holds the file type's slot.
func NewImportRun(id string, fileType FileType, trigger RunTrigger, now time.Time) *ImportRun {
	slot := string(fileType)
	return &ImportRun{
		ID:         id,
		FileType:   fileType,
		Status:     RunStatusDetected,
		Trigger:    trigger,
		ActiveSlot: &slot,
		StartedAt:  now,
	}
}
