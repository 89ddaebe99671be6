package domain

import "fmt"

// FileType is the logical kind of HR export a file carries.
type FileType string

const (
	FileTypeEmployeeRoster     FileType = "employee-roster"
	FileTypeTerminationReasons FileType = "termination-reasons"
	FileTypeAttendance         FileType = "attendance"
)

// AllFileTypes lists file types in the order a full sync processes them.
var AllFileTypes = []FileType{
	FileTypeEmployeeRoster,
	FileTypeTerminationReasons,
	FileTypeAttendance,
}

// Valid reports whether t is a known file type.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeEmployeeRoster, FileTypeTerminationReasons, FileTypeAttendance:
		return true
	}
	return false
}

// ParseFileType validates a file type coming from config, flags or HTTP input.
func ParseFileType(s string) (FileType, error) {
	t := FileType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown file type %q", s)
	}
	return t, nil
}
