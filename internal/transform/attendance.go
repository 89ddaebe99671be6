package transform

import (
	"strings"
	"time"

	"github.com/timmy/hrsync/internal/decoder"
	"github.com/timmy/hrsync/internal/domain"
)

// AttendanceLayout is the shape of an attendance export.
type AttendanceLayout string

const (
	// LayoutVertical has one row per employee-day with a date column.
	LayoutVertical AttendanceLayout = "vertical"
	// LayoutWeekly has one row per employee-week with LUN..DOM date columns and hour columns per day.
	LayoutWeekly AttendanceLayout = "weekly"
	// LayoutDateColumns has one row per employee and one column per date holding hours.
	LayoutDateColumns AttendanceLayout = "date_columns"
)

type weekdayBlock struct {
	date, ord, te, inc string
}

// DetectAttendanceLayout inspects the header of an attendance file.
func DetectAttendanceLayout(columns []string) AttendanceLayout {
	r := NewResolver(columns, AttendanceMapping)
	if r.Has(FieldDate) {
		return LayoutVertical
	}
	if _, ok := r.Find(weekdayBlocks[0]); ok {
		return LayoutWeekly
	}
	return LayoutDateColumns
}

// AttendanceSpec picks the row mapper for the layout of table.
func AttendanceSpec(table *decoder.Table, pivot int) Spec[*domain.AttendanceDay] {
	spec := Spec[*domain.AttendanceDay]{
		Mapping:  AttendanceMapping,
		Required: []string{FieldEmployeeNumber},
	}

	switch DetectAttendanceLayout(table.Columns) {
	case LayoutVertical:
		spec.Required = append(spec.Required, FieldDate)
		spec.Map = mapAttendanceVertical
	case LayoutWeekly:
		spec.Map = weeklyMapper(resolveWeekdayBlocks(table.Columns))
	default:
		spec.Map = dateColumnsMapper(dateColumns(table.Columns, pivot))
	}
	return spec
}

func mapAttendanceVertical(row *Row) ([]*domain.AttendanceDay, error) {
	number, err := row.Key(FieldEmployeeNumber)
	if err != nil {
		return nil, err
	}
	date := row.Date(FieldDate)
	if date == nil {
		return nil, missingKey(FieldDate)
	}

	day := newAttendanceDay(number, *date)
	day.HoursWorked = row.Float(FieldHoursWorked) + row.Float(FieldOvertimeHours)
	day.IncidentHours = row.Float(FieldIncidentHours)
	day.IncidentCode = row.String(FieldIncidentCode)
	if present, ok := row.Bool(FieldPresent); ok {
		day.Present = present
	} else {
		day.Present = day.HoursWorked > 0
	}
	return []*domain.AttendanceDay{day}, nil
}

func resolveWeekdayBlocks(columns []string) []weekdayBlock {
	r := NewResolver(columns, nil)
	var blocks []weekdayBlock
	for _, prefix := range weekdayBlocks {
		date, ok := r.Find(prefix)
		if !ok {
			continue
		}
		ordCands, teCands, incCands := weekdayColumns(prefix)
		b := weekdayBlock{date: date}
		b.ord, _ = r.Find(ordCands...)
		b.te, _ = r.Find(teCands...)
		b.inc, _ = r.Find(incCands...)
		blocks = append(blocks, b)
	}
	return blocks
}

func weeklyMapper(blocks []weekdayBlock) MapFunc[*domain.AttendanceDay] {
	return func(row *Row) ([]*domain.AttendanceDay, error) {
		number, err := row.Key(FieldEmployeeNumber)
		if err != nil {
			return nil, err
		}

		var days []*domain.AttendanceDay
		for _, b := range blocks {
			date := row.DateOf(b.date, row.Raw(b.date))
			if date == nil {
				continue
			}
			day := newAttendanceDay(number, *date)
			if b.ord != "" {
				day.HoursWorked += row.FloatOf(b.ord, row.Raw(b.ord))
			}
			if b.te != "" {
				day.HoursWorked += row.FloatOf(b.te, row.Raw(b.te))
			}
			if b.inc != "" {
				day.IncidentCode = strings.TrimSpace(row.Raw(b.inc))
			}
			day.Present = day.HoursWorked > 0
			days = append(days, day)
		}
		if len(days) == 0 {
			return nil, missingKey(FieldDate)
		}
		return days, nil
	}
}

type dateColumn struct {
	header string
	date   time.Time
}

// dateColumns returns the headers that parse as day/month/year or ISO dates.
// Serial numbers are not accepted here so numeric headers are not mistaken for dates.
func dateColumns(columns []string, pivot int) []dateColumn {
	p := NewDateParser(pivot)
	var out []dateColumn
	for _, c := range columns {
		if t, ok := parseISO(c); ok {
			out = append(out, dateColumn{header: c, date: t})
			continue
		}
		if t, ok := p.parseDMY(c); ok {
			out = append(out, dateColumn{header: c, date: t})
		}
	}
	return out
}

func dateColumnsMapper(cols []dateColumn) MapFunc[*domain.AttendanceDay] {
	return func(row *Row) ([]*domain.AttendanceDay, error) {
		number, err := row.Key(FieldEmployeeNumber)
		if err != nil {
			return nil, err
		}
		if len(cols) == 0 {
			return nil, missingKey(FieldDate)
		}

		var days []*domain.AttendanceDay
		for _, c := range cols {
			raw := strings.TrimSpace(row.Raw(c.header))
			if isNullValue(raw) {
				continue
			}
			day := newAttendanceDay(number, c.date)
			day.HoursWorked = row.FloatOf(c.header, raw)
			day.Present = day.HoursWorked > 0
			days = append(days, day)
		}
		return days, nil
	}
}

func newAttendanceDay(number int, date time.Time) *domain.AttendanceDay {
	return &domain.AttendanceDay{
		RecordKey:      domain.AttendanceKey(number, date),
		EmployeeNumber: number,
		Date:           date,
		Weekday:        strings.ToLower(date.Weekday().String()),
	}
}
