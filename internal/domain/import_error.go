package domain

import "time"

// IssueSeverity separates rows that were dropped from rows emitted with a warning.
type IssueSeverity string

const (
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// Row issue types.
const (
	IssueMissingKey  = "missing_key"
	IssueInvalidDate = "invalid_date"
	IssueInvalidNum  = "invalid_number"
	IssueBatchFailed = "batch_failed"
	IssueDuplicate   = "duplicate_key"
	IssueUnresolved  = "unresolved_column"
)

// ImportError is a row-level issue recorded for a run.
type ImportError struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	RunID     string        `gorm:"type:text;not null;index" json:"run_id"`
	RowNumber int           `json:"row_number"`
	Severity  IssueSeverity `gorm:"type:text;not null" json:"severity"`
	ErrorType string        `gorm:"type:text;not null" json:"error_type"`
	Field     string        `gorm:"type:text" json:"field,omitempty"`
	Message   string        `gorm:"type:text" json:"message"`
	RawData   RawRow        `gorm:"type:text" json:"raw_data,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// TableName returns the database table name for ImportError.
func (ImportError) TableName() string {
	return "import_errors"
}
