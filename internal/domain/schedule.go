package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SyncFrequency is how often the scheduler starts a full sync.
type SyncFrequency string

const (
	FrequencyManual  SyncFrequency = "manual"
	FrequencyDaily   SyncFrequency = "daily"
	FrequencyWeekly  SyncFrequency = "weekly"
	FrequencyMonthly SyncFrequency = "monthly"
)

// DefaultRunTime is used when a schedule carries no valid HH:MM.
const DefaultRunTime = "02:00"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// SyncSchedule is the single persisted schedule row (ID 1).
type SyncSchedule struct {
	ID         uint          `gorm:"primaryKey" json:"-"`
	Frequency  SyncFrequency `gorm:"type:text;not null" json:"frequency"`
	DayOfWeek  string        `gorm:"type:text" json:"day_of_week"`
	RunTime    string        `gorm:"type:text" json:"run_time"`
	NextRunAt  *time.Time    `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time    `json:"last_run_at,omitempty"`
	LastResult string        `gorm:"type:text" json:"last_result,omitempty"`
	UpdatedBy  string        `gorm:"type:text" json:"updated_by,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// TableName returns the database table name for SyncSchedule.
func (SyncSchedule) TableName() string {
	return "sync_schedules"
}

// NormalizeFrequency maps unknown values to manual.
func NormalizeFrequency(s string) SyncFrequency {
	switch f := SyncFrequency(strings.ToLower(strings.TrimSpace(s))); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return f
	}
	return FrequencyManual
}

// NormalizeDayOfWeek maps unknown values to monday.
func NormalizeDayOfWeek(s string) string {
	day := strings.ToLower(strings.TrimSpace(s))
	if _, ok := weekdays[day]; ok {
		return day
	}
	return "monday"
}

// NormalizeRunTime clamps "H:M" into a zero-padded "HH:MM", falling back to DefaultRunTime.
func NormalizeRunTime(s string) string {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return DefaultRunTime
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return DefaultRunTime
	}
	h = min(max(h, 0), 23)
	m = min(max(m, 0), 59)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// Normalize rewrites the schedule's fields into their canonical forms.
func (s *SyncSchedule) Normalize() {
	s.Frequency = NormalizeFrequency(string(s.Frequency))
	s.DayOfWeek = NormalizeDayOfWeek(s.DayOfWeek)
	s.RunTime = NormalizeRunTime(s.RunTime)
}

// ComputeNextRun returns the first run strictly after from, or nil for manual schedules.
// Weekly schedules fire on DayOfWeek, monthly ones on the first day of the next month.
func (s *SyncSchedule) ComputeNextRun(from time.Time) *time.Time {
	var hour, minute int
	fmt.Sscanf(NormalizeRunTime(s.RunTime), "%d:%d", &hour, &minute)
	at := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, from.Location())
	}

	var next time.Time
	switch NormalizeFrequency(string(s.Frequency)) {
	case FrequencyDaily:
		next = at(from)
		if !next.After(from) {
			next = at(from.AddDate(0, 0, 1))
		}
	case FrequencyWeekly:
		target := weekdays[NormalizeDayOfWeek(s.DayOfWeek)]
		days := (int(target) - int(from.Weekday()) + 7) % 7
		next = at(from.AddDate(0, 0, days))
		if !next.After(from) {
			next = at(from.AddDate(0, 0, days+7))
		}
	case FrequencyMonthly:
		firstOfNext := time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, from.Location())
		next = at(firstOfNext)
	default:
		return nil
	}
	return &next
}
