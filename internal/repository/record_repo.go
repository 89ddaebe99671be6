package repository

import (
	"context"
	"fmt"

	"github.com/timmy/hrsync/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchOutcome is what one upsert batch did.
type BatchOutcome struct {
	Inserted  int
	Updated   int
	Unchanged int
	Diffs     []domain.RecordDiff
}

// RecordStore upserts canonical records of one variant by natural key.
type RecordStore[T domain.Record] struct {
	db *gorm.DB
}

// NewRecordStore creates a RecordStore for T.
func NewRecordStore[T domain.Record](db *gorm.DB) *RecordStore[T] {
	return &RecordStore[T]{db: db}
}

type keyHash struct {
	RecordKey string
	RowHash   string
}

// UpsertBatch writes batch in one transaction. Keys already stored count as updated, the
// rest as inserted; stored rows whose hash did not change also count as unchanged.
// Diffs carry runID for inserts and content-changing updates.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: run that produced the batch.
//   - batch: records with unique natural keys.
// Returns:
//   - BatchOutcome: counts and diffs of the committed batch.
//   - error: non-nil if the transaction was rolled back; nothing of the batch is stored.
func (s *RecordStore[T]) UpsertBatch(ctx context.Context, runID string, batch []T) (BatchOutcome, error) {
	var out BatchOutcome
	if len(batch) == 0 {
		return out, nil
	}
	table := batch[0].TableName()

	keys := make([]string, len(batch))
	for i, rec := range batch {
		keys[i] = rec.NaturalKey()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []keyHash
		if err := tx.Table(table).
			Select(domain.NaturalKeyColumn, "row_hash").
			Where(domain.NaturalKeyColumn+" IN ?", keys).
			Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to read existing %s keys: %w", table, err)
		}
		stored := make(map[string]string, len(existing))
		for _, e := range existing {
			stored[e.RecordKey] = e.RowHash
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: domain.NaturalKeyColumn}},
			UpdateAll: true,
		}).Create(&batch).Error; err != nil {
			return fmt.Errorf("failed to upsert %s: %w", table, err)
		}

		for _, rec := range batch {
			key := rec.NaturalKey()
			oldHash, found := stored[key]
			switch {
			case !found:
				out.Inserted++
				out.Diffs = append(out.Diffs, domain.RecordDiff{
					RunID: runID, Table: table, RecordKey: key, Action: domain.DiffInsert, NewHash: rec.Hash(),
				})
			case oldHash != rec.Hash():
				out.Updated++
				out.Diffs = append(out.Diffs, domain.RecordDiff{
					RunID: runID, Table: table, RecordKey: key, Action: domain.DiffUpdate, OldHash: oldHash, NewHash: rec.Hash(),
				})
			default:
				out.Updated++
				out.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		return BatchOutcome{}, err
	}
	return out, nil
}
