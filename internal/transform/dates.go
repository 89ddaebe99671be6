package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultYearPivot splits two-digit years: below it -> 20xx, otherwise 19xx.
const DefaultYearPivot = 50

// Spreadsheet serial dates count days from 1899-12-30.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

const maxSerial = 2958465 // 9999-12-31

// DateParser parses the date spellings found in HR exports into UTC midnight.
type DateParser struct {
	YearPivot int
}

// NewDateParser clamps pivot into 0..99, using DefaultYearPivot for 0.
func NewDateParser(pivot int) DateParser {
	if pivot <= 0 || pivot > 99 {
		pivot = DefaultYearPivot
	}
	return DateParser{YearPivot: pivot}
}

// Parse tries ISO, then day/month/year, then spreadsheet serial numbers.
// An empty value is (nil, nil); a value no format accepts is (nil, error).
func (p DateParser) Parse(value string) (*time.Time, error) {
	s := strings.TrimSpace(value)
	if isNullValue(s) {
		return nil, nil
	}

	if t, ok := parseISO(s); ok {
		return &t, nil
	}
	if t, ok := p.parseDMY(s); ok {
		return &t, nil
	}
	if t, ok := parseSerial(s); ok {
		return &t, nil
	}
	return nil, fmt.Errorf("unrecognized date %q", value)
}

func parseISO(s string) (time.Time, bool) {
	// Accept timestamps such as "2024-05-01T00:00:00Z" or "2024-05-01 08:00:00" by date prefix.
	if len(s) > 10 && (s[10] == 'T' || s[10] == ' ') {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (p DateParser) parseDMY(s string) (time.Time, bool) {
	// Drop a trailing time part: "01/05/2024 00:00".
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	switch len(parts[2]) {
	case 2:
		pivot := p.YearPivot
		if pivot == 0 {
			pivot = DefaultYearPivot
		}
		if year < pivot {
			year += 2000
		} else {
			year += 1900
		}
	case 4:
	default:
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject overflowing components such as 31/02, which time.Date would normalize.
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}
	return t, true
}

func parseSerial(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 1 || f > maxSerial {
		return time.Time{}, false
	}
	return serialEpoch.AddDate(0, 0, int(math.Floor(f))), true
}

// FormatDate renders t as ISO YYYY-MM-DD, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
