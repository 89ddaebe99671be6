package decoder

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Delimiters are tried in this order; ties keep the earlier one.
var Delimiters = []rune{',', ';', '\t', '|'}

const (
	CharsetUTF8    = "utf-8"
	CharsetUTF16   = "utf-16"
	CharsetWin1252 = "windows-1252"
)

func decodeText(raw []byte, hint string, columns []string) (*Table, error) {
	text, charset, err := toUTF8(raw)
	if err != nil {
		return nil, &DecodeError{Reason: "unsupported text encoding", Err: err}
	}
	if strings.ContainsRune(text, 0) {
		return nil, &DecodeError{Reason: "unrecognized binary format (extension " + hint + ")"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &DecodeError{Reason: "empty file"}
	}

	delim := sniffDelimiter(text)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	table := &Table{Format: FormatText, Delimiter: delim, Charset: charset}
	if columns != nil {
		table.Columns = normalizeHeader(columns)
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				table.DroppedRows++
				continue
			}
			return nil, &DecodeError{Reason: "read delimited text", Err: err}
		}

		if table.Columns == nil {
			table.Columns = normalizeHeader(rec)
			if len(table.Columns) == 0 {
				return nil, &DecodeError{Reason: "header row is empty"}
			}
			continue
		}
		if blank(rec) {
			continue
		}
		rec = trimTrailingEmpty(rec, len(table.Columns))
		if len(rec) != len(table.Columns) {
			table.DroppedRows++
			continue
		}

		row := make(map[string]string, len(rec))
		for i, col := range table.Columns {
			row[col] = strings.TrimSpace(rec[i])
		}
		table.Rows = append(table.Rows, row)
	}

	if table.Columns == nil {
		return nil, &DecodeError{Reason: "no header row"}
	}
	return table, nil
}

// trimTrailingEmpty drops empty fields produced by trailing delimiters, never below want.
// A row that still has more fields than the header after trimming is dropped by the caller.
func trimTrailingEmpty(rec []string, want int) []string {
	for len(rec) > want && strings.TrimSpace(rec[len(rec)-1]) == "" {
		rec = rec[:len(rec)-1]
	}
	return rec
}

// toUTF8 strips a BOM and converts UTF-16 or Windows-1252 input to UTF-8.
func toUTF8(raw []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		return string(raw[3:]), CharsetUTF8, nil
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}), bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err != nil {
			return "", "", err
		}
		return string(out), CharsetUTF16, nil
	case utf8.Valid(raw):
		return string(raw), CharsetUTF8, nil
	default:
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", "", err
		}
		return string(out), CharsetWin1252, nil
	}
}

// sniffDelimiter counts candidate delimiters outside quotes on the first non-blank line.
func sniffDelimiter(text string) rune {
	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	counts := make(map[rune]int, len(Delimiters))
	inQuotes := false
	for _, c := range line {
		if c == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[c]++
		}
	}

	best, bestCount := Delimiters[0], 0
	for _, d := range Delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
