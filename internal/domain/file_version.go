package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// FileVersion registers one downloaded copy of a remote file, keyed by content checksum.
type FileVersion struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	FileType      FileType   `gorm:"type:text;not null;index:idx_file_versions_type_checksum" json:"file_type"`
	OriginalName  string     `gorm:"type:text;not null" json:"original_name"`
	VersionedName string     `gorm:"type:text;not null" json:"versioned_name"`
	Checksum      string     `gorm:"type:text;not null;index:idx_file_versions_type_checksum" json:"checksum"`
	Size          int64      `json:"size"`
	StorageKey    string     `gorm:"type:text" json:"storage_key,omitempty"`
	RunID         string     `gorm:"type:text;index" json:"run_id"`
	Processed     bool       `gorm:"default:false" json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	DownloadedAt  time.Time  `json:"downloaded_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName returns the database table name for FileVersion.
func (FileVersion) TableName() string {
	return "file_versions"
}

// VersionedFileName appends a download timestamp to a file name, keeping its extension:
// "Prenomina Horizontal.csv" -> "Prenomina Horizontal_2024_05_01_02_00_00.csv".
func VersionedFileName(name string, at time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "_" + at.Format("2006_01_02_15_04_05") + ext
}
