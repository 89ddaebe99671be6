// Package transform maps decoded rows onto canonical records.
package transform

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/timmy/hrsync/internal/decoder"
	"github.com/timmy/hrsync/internal/domain"
)

// Issue is a row-level problem. Warnings keep the row; failures drop it.
type Issue struct {
	Row     int               `json:"row"`
	Field   string            `json:"field,omitempty"`
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Raw     map[string]string `json:"raw,omitempty"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("row %d: %s: %s", i.Row, i.Field, i.Message)
	}
	return fmt.Sprintf("row %d: %s", i.Row, i.Message)
}

// Result is the output of one transformation.
type Result[T domain.Record] struct {
	Records  []T
	Warnings []Issue
	Failures []Issue
	// Unresolved lists required fields with no matching header, with a suggestion when one exists.
	Unresolved map[string]string
	// Columns maps each resolved field to the header it was read from.
	Columns map[string]string
}

// Processed is the number of rows that produced records or were dropped.
func (r *Result[T]) Processed() int {
	return len(r.Records) + len(r.Failures)
}

// RowError drops a row. Type is one of the domain issue types.
type RowError struct {
	Type    string
	Field   string
	Message string
}

func (e *RowError) Error() string {
	return e.Field + ": " + e.Message
}

func missingKey(field string) error {
	return &RowError{Type: domain.IssueMissingKey, Field: field, Message: "natural key is missing"}
}

// MapFunc turns one row into zero or more records. Returning a *RowError drops the row.
type MapFunc[T domain.Record] func(row *Row) ([]T, error)

// Spec describes how one file type becomes records.
type Spec[T domain.Record] struct {
	Mapping  Mapping
	Required []string
	Map      MapFunc[T]
}

// Options are per-run transformation settings.
type Options struct {
	YearPivot int
}

// Transform runs spec.Map over every row of table. Rows are numbered from 1 in data order.
// Records get their row hash here; the writer stamps the run id.
func Transform[T domain.Record](table *decoder.Table, spec Spec[T], opts Options) *Result[T] {
	resolver := NewResolver(table.Columns, spec.Mapping)
	dates := NewDateParser(opts.YearPivot)
	res := &Result[T]{Columns: resolver.Resolved()}

	for _, field := range spec.Required {
		if !resolver.Has(field) {
			if res.Unresolved == nil {
				res.Unresolved = make(map[string]string)
			}
			res.Unresolved[field] = resolver.Suggest(field)
		}
	}

	for i, values := range table.Rows {
		row := &Row{Number: i + 1, values: values, resolver: resolver, dates: dates}
		records, err := spec.Map(row)
		res.Warnings = append(res.Warnings, row.warnings...)
		if err != nil {
			issue := Issue{Row: row.Number, Type: domain.IssueMissingKey, Message: err.Error(), Raw: values}
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				issue.Type, issue.Field, issue.Message = rowErr.Type, rowErr.Field, rowErr.Message
			}
			res.Failures = append(res.Failures, issue)
			continue
		}
		for _, rec := range records {
			rec.SetProvenance("", RowHash(rec))
			res.Records = append(res.Records, rec)
		}
	}
	return res
}

// Row gives typed access to one decoded row through the resolver.
// Conversion problems on optional fields are collected as warnings.
type Row struct {
	Number   int
	values   map[string]string
	resolver *Resolver
	dates    DateParser
	warnings []Issue
}

// Raw returns the cell under an explicit header.
func (r *Row) Raw(column string) string {
	return r.values[column]
}

// Values returns the raw cells of the row.
func (r *Row) Values() map[string]string {
	return r.values
}

// Has reports whether field resolved to a header of the file.
func (r *Row) Has(field string) bool {
	return r.resolver.Has(field)
}

// String returns the trimmed cell for field, "" when unresolved or a null placeholder.
func (r *Row) String(field string) string {
	col, ok := r.resolver.Column(field)
	if !ok {
		return ""
	}
	v := strings.TrimSpace(r.values[col])
	if isNullValue(v) {
		return ""
	}
	return v
}

// Key parses field as a positive employee number; failures drop the row.
func (r *Row) Key(field string) (int, error) {
	v := r.String(field)
	if v == "" {
		return 0, missingKey(field)
	}
	n, err := ParseInt(v)
	if err != nil || n <= 0 {
		return 0, &RowError{Type: domain.IssueInvalidNum, Field: field, Message: fmt.Sprintf("invalid employee number %q", v)}
	}
	return n, nil
}

// Date parses field; an unrecognized value becomes nil plus a warning naming the header.
func (r *Row) Date(field string) *time.Time {
	return r.dateValue(r.header(field), r.String(field))
}

// DateOf parses a raw value found under column, for columns outside the mapping.
func (r *Row) DateOf(column, value string) *time.Time {
	return r.dateValue(column, value)
}

func (r *Row) dateValue(column, value string) *time.Time {
	t, err := r.dates.Parse(value)
	if err != nil {
		r.Warn(column, domain.IssueInvalidDate, err.Error())
		return nil
	}
	return t
}

// Bool coerces field with ParseBool. The second result is false when the column is absent.
func (r *Row) Bool(field string) (bool, bool) {
	if !r.resolver.Has(field) {
		return false, false
	}
	return ParseBool(r.String(field)), true
}

// Float parses field; an invalid number becomes 0 plus a warning.
func (r *Row) Float(field string) float64 {
	return r.FloatOf(r.header(field), r.String(field))
}

func (r *Row) header(field string) string {
	if col, ok := r.resolver.Column(field); ok {
		return col
	}
	return field
}

// FloatOf parses a raw value found under column.
func (r *Row) FloatOf(column, value string) float64 {
	f, err := ParseFloat(value)
	if err != nil {
		r.Warn(column, domain.IssueInvalidNum, err.Error())
		return 0
	}
	return f
}

// Warn records a non-fatal issue for the row.
func (r *Row) Warn(field, issueType, message string) {
	r.warnings = append(r.warnings, Issue{Row: r.Number, Field: field, Type: issueType, Message: message, Raw: r.values})
}
