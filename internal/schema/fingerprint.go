// Package schema fingerprints decoded files and classifies drift against the last accepted structure.
package schema

import "github.com/timmy/hrsync/internal/domain"

// DefaultTolerance is the fraction of rows a file may lose before the drop is breaking.
const DefaultTolerance = 0.5

// Fingerprint is the structure of one decoded file.
type Fingerprint struct {
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

// ComputeFingerprint copies columns so later mutation of the decoder's slice cannot alter it.
func ComputeFingerprint(columns []string, rowCount int) Fingerprint {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Fingerprint{Columns: cols, RowCount: rowCount}
}

// FromSnapshot rebuilds the fingerprint stored for a file type. A nil snapshot yields nil.
func FromSnapshot(s *domain.FileStructureSnapshot) *Fingerprint {
	if s == nil {
		return nil
	}
	fp := ComputeFingerprint(s.Columns, s.RowCount)
	return &fp
}
