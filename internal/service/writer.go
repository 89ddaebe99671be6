package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/hrsync/internal/domain"
	"github.com/timmy/hrsync/internal/logger"
	"github.com/timmy/hrsync/internal/metrics"
	"github.com/timmy/hrsync/internal/repository"
)

const (
	minBatchSize = 50
	maxBatchSize = 100
)

// WriterConfig controls how records are split into write transactions.
type WriterConfig struct {
	BatchSize   int
	Concurrency int
}

// ClampBatchSize keeps n inside the supported 50..100 range.
func ClampBatchSize(n int) int {
	return min(max(n, minBatchSize), maxBatchSize)
}

// BatchStore upserts one batch of records atomically.
type BatchStore[T domain.Record] interface {
	UpsertBatch(ctx context.Context, runID string, batch []T) (repository.BatchOutcome, error)
}

// WriteResult accumulates what the writer did across all batches.
type WriteResult struct {
	Inserted   int
	Updated    int
	Unchanged  int
	Failed     int
	Duplicates int
	Diffs      []domain.RecordDiff
	Errors     []domain.ImportError
}

type batchResult struct {
	outcome repository.BatchOutcome
	err     error
}

// ApplyRecords writes records in fixed-size batches. Each batch commits or rolls back on its
// own; a failed batch adds its size to Failed and the remaining batches still run.
// Records sharing a natural key are collapsed to the last one before batching.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - store: per-variant record store.
//   - runID: run stamped on every record and diff.
//   - fileType: label for logs and metrics.
//   - records: transformed records in row order.
//   - cfg: batch size and number of concurrent batches.
// Returns:
//   - WriteResult: counts, diffs and batch errors.
func ApplyRecords[T domain.Record](ctx context.Context, store BatchStore[T], runID, fileType string, records []T, cfg WriterConfig) WriteResult {
	var res WriteResult
	records, res.Duplicates = dedupeByKey(records)
	if len(records) == 0 {
		return res
	}
	for _, rec := range records {
		rec.SetProvenance(runID, rec.Hash())
	}

	size := ClampBatchSize(cfg.BatchSize)
	var batches [][]T
	for start := 0; start < len(records); start += size {
		batches = append(batches, records[start:min(start+size, len(records))])
	}

	results := make([]batchResult, len(batches))
	var g errgroup.Group
	g.SetLimit(max(cfg.Concurrency, 1))
	for i, batch := range batches {
		g.Go(func() error {
			out, err := store.UpsertBatch(ctx, runID, batch)
			results[i] = batchResult{outcome: out, err: err}
			return nil
		})
	}
	_ = g.Wait()

	log := logger.FromContext(ctx)
	for i, r := range results {
		if r.err != nil {
			res.Failed += len(batches[i])
			log.WithError(r.err).WithFields(logger.Fields{
				logger.FieldBatch: i,
				logger.FieldCount: len(batches[i]),
			}).Error("Write batch failed")
			metrics.BatchFailed(fileType)
			res.Errors = append(res.Errors, domain.ImportError{
				RunID:     runID,
				Severity:  domain.SeverityError,
				ErrorType: domain.IssueBatchFailed,
				Message:   fmt.Sprintf("batch %d (%d records, first key %s): %v", i, len(batches[i]), batches[i][0].NaturalKey(), r.err),
			})
			continue
		}
		logger.With(logger.Fields{
			"inserted": r.outcome.Inserted,
			"updated":  r.outcome.Updated,
		}).WithBatch(i).WithCount(len(batches[i])).Debug(ctx, "Batch written")
		res.Inserted += r.outcome.Inserted
		res.Updated += r.outcome.Updated
		res.Unchanged += r.outcome.Unchanged
		res.Diffs = append(res.Diffs, r.outcome.Diffs...)
	}

	metrics.RowsWritten(fileType, "inserted", res.Inserted)
	metrics.RowsWritten(fileType, "updated", res.Updated)
	metrics.RowsWritten(fileType, "unchanged", res.Unchanged)
	metrics.RowsWritten(fileType, "failed", res.Failed)
	return res
}

// dedupeByKey keeps the last record of every natural key, at the position of its first occurrence.
func dedupeByKey[T domain.Record](records []T) ([]T, int) {
	index := make(map[string]int, len(records))
	out := make([]T, 0, len(records))
	for _, rec := range records {
		key := rec.NaturalKey()
		if i, ok := index[key]; ok {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out, len(records) - len(out)
}
