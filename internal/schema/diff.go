package schema

import (
	"slices"

	"github.com/timmy/hrsync/internal/domain"
)

// Options are the caller's gating policy.
type Options struct {
	// Tolerance is the largest accepted fractional row-count drop, e.g. 0.5.
	Tolerance float64
	// RequireBaseline classifies a file type's first run as breaking so it needs approval.
	RequireBaseline bool
}

// Result is the classified difference between the accepted and the current structure.
type Result struct {
	Classification domain.Classification `json:"classification"`
	Added          []string              `json:"added,omitempty"`
	Removed        []string              `json:"removed,omitempty"`
	RowCountDrop   bool                  `json:"row_count_drop,omitempty"`
	Empty          bool                  `json:"empty,omitempty"`
	FirstRun       bool                  `json:"first_run,omitempty"`
	Reasons        []string              `json:"reasons,omitempty"`
}

// Breaking reports whether the run must stop at the approval gate.
func (r Result) Breaking() bool {
	return r.Classification == domain.ClassificationBreaking
}

// Diff classifies current against previous.
//
// A file with zero rows is always breaking. Without a previous fingerprint the result is
// unchanged, or breaking when opts.RequireBaseline is set. Otherwise any removed column or a
// row-count drop beyond the tolerance is breaking; new columns with nothing removed are
// additive; an identical ordered column list is unchanged. A pure reorder is additive with no
// added columns, since the previous columns all still appear.
func Diff(previous *Fingerprint, current Fingerprint, opts Options) Result {
	tolerance := opts.Tolerance
	if tolerance <= 0 || tolerance >= 1 {
		tolerance = DefaultTolerance
	}

	var res Result
	if current.RowCount == 0 {
		res.Empty = true
		res.Reasons = append(res.Reasons, "file has no data rows")
	}

	if previous == nil {
		res.FirstRun = true
		res.Added = slices.Clone(current.Columns)
		if opts.RequireBaseline {
			res.Reasons = append(res.Reasons, "no accepted baseline for this file type")
		}
		res.Classification = domain.ClassificationUnchanged
		if res.Empty || opts.RequireBaseline {
			res.Classification = domain.ClassificationBreaking
		}
		return res
	}

	res.Added = missingFrom(current.Columns, previous.Columns)
	res.Removed = missingFrom(previous.Columns, current.Columns)
	if len(res.Removed) > 0 {
		res.Reasons = append(res.Reasons, "columns removed or renamed")
	}

	if previous.RowCount > 0 {
		minRows := float64(previous.RowCount) * (1 - tolerance)
		if float64(current.RowCount) < minRows {
			res.RowCountDrop = true
			res.Reasons = append(res.Reasons, "row count dropped beyond tolerance")
		}
	}

	switch {
	case res.Empty || res.RowCountDrop || len(res.Removed) > 0:
		res.Classification = domain.ClassificationBreaking
	case slices.Equal(previous.Columns, current.Columns):
		res.Classification = domain.ClassificationUnchanged
	default:
		res.Classification = domain.ClassificationAdditive
	}
	return res
}

// missingFrom returns the entries of a that b lacks, in a's order.
func missingFrom(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, c := range b {
		set[c] = struct{}{}
	}
	var out []string
	for _, c := range a {
		if _, ok := set[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
