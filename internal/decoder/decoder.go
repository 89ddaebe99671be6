// Package decoder turns raw export bytes into an ordered header plus rows keyed by column name.
package decoder

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Format is the container a file was decoded from.
type Format string

const (
	FormatText Format = "text"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

var (
	zipMagic  = []byte{'P', 'K', 0x03, 0x04}
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Table is a decoded file: the ordered header and one map per data row.
type Table struct {
	Columns     []string
	Rows        []map[string]string
	DroppedRows int
	Format      Format
	Delimiter   rune
	Charset     string
}

// RowCount returns the number of data rows kept.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// DecodeError means the bytes could not be read as any supported format.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Reason, e.Err)
	}
	return "decode error: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads raw as a spreadsheet or delimited text file. The first row is the header.
// Parameters:
//   - raw: file contents.
//   - hintExtension: the file's extension, used only when the content itself is ambiguous.
// Returns:
//   - *Table: decoded header and rows.
//   - error: *DecodeError when raw is empty, unrecognized or has no header.
func Decode(raw []byte, hintExtension string) (*Table, error) {
	return decode(raw, hintExtension, nil)
}

// DecodeWithColumns reads a headerless file, naming its fields with columns.
func DecodeWithColumns(raw []byte, hintExtension string, columns []string) (*Table, error) {
	if len(columns) == 0 {
		return nil, &DecodeError{Reason: "no columns given for headerless file"}
	}
	return decode(raw, hintExtension, columns)
}

func decode(raw []byte, hint string, columns []string) (*Table, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &DecodeError{Reason: "empty file"}
	}

	var (
		records [][]string
		table   *Table
		err     error
	)
	switch {
	case bytes.HasPrefix(raw, zipMagic):
		records, err = readXLSX(raw)
		table = &Table{Format: FormatXLSX}
	case bytes.HasPrefix(raw, ole2Magic):
		records, err = readXLS(raw)
		table = &Table{Format: FormatXLS}
	default:
		return decodeText(raw, hint, columns)
	}
	if err != nil {
		return nil, err
	}

	header := columns
	if header == nil {
		if len(records) == 0 {
			return nil, &DecodeError{Reason: "spreadsheet has no header row"}
		}
		header, records = records[0], records[1:]
	}
	table.Columns = normalizeHeader(header)
	if len(table.Columns) == 0 {
		return nil, &DecodeError{Reason: "spreadsheet header is empty"}
	}

	// Spreadsheets omit trailing empty cells, so short rows are padded rather than dropped.
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(table.Columns))
		for i, col := range table.Columns {
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// normalizeHeader trims names, drops trailing unnamed columns and makes names unique.
func normalizeHeader(header []string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = cleanColumnName(h)
	}
	for len(cols) > 0 && cols[len(cols)-1] == "" {
		cols = cols[:len(cols)-1]
	}

	seen := make(map[string]int, len(cols))
	for i, c := range cols {
		if c == "" {
			c = "column_" + strconv.Itoa(i+1)
		}
		seen[c]++
		if n := seen[c]; n > 1 {
			c = c + "_" + strconv.Itoa(n)
		}
		cols[i] = c
	}
	return cols
}

func cleanColumnName(s string) string {
	return strings.Trim(s, " \t\r\n\"'\ufeff")
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
