package domain

import "time"

// DiffAction is what a write did to a stored record.
type DiffAction string

const (
	DiffInsert   DiffAction = "insert"
	DiffUpdate   DiffAction = "update"
	DiffNoChange DiffAction = "no_change"
)

// RecordDiff logs an insert or a content-changing update made by a run.
type RecordDiff struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	RunID     string     `gorm:"type:text;not null;index" json:"run_id"`
	Table     string     `gorm:"column:table_name;type:text;not null" json:"table_name"`
	RecordKey string     `gorm:"type:text;not null" json:"record_key"`
	Action    DiffAction `gorm:"type:text;not null" json:"action"`
	OldHash   string     `gorm:"type:text" json:"old_hash,omitempty"`
	NewHash   string     `gorm:"type:text" json:"new_hash"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for RecordDiff.
func (RecordDiff) TableName() string {
	return "record_diffs"
}
