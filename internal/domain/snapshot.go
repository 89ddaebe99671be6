package domain

import "time"

// FileStructureSnapshot is the last accepted structure of a file type.
// There is one row per file type; Version increments on every replacement.
type FileStructureSnapshot struct {
	FileType   FileType    `gorm:"type:text;primaryKey" json:"file_type"`
	Columns    StringArray `gorm:"type:text;not null" json:"columns"`
	RowCount   int         `json:"row_count"`
	Version    int         `gorm:"not null;default:1" json:"version"`
	RunID      string      `gorm:"type:text" json:"run_id"`
	SourceFile string      `gorm:"type:text" json:"source_file"`
	CapturedAt time.Time   `json:"captured_at"`
}

// TableName returns the database table name for FileStructureSnapshot.
func (FileStructureSnapshot) TableName() string {
	return "file_structure_snapshots"
}
