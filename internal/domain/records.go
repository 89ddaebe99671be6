package domain

import (
	"strconv"
	"time"
)

// Record is implemented by every canonical record variant the pipeline writes.
// RecordKey is the natural key; it is the table's primary key so uniqueness is
// enforced by the store.
type Record interface {
	TableName() string
	NaturalKey() string
	Hash() string
	SetProvenance(runID, rowHash string)
}

// NaturalKeyColumn is the column that holds Record.NaturalKey in every record table.
const NaturalKeyColumn = "record_key"

// EmployeeStatus is the explicit employment state of an Employee.
type EmployeeStatus string

const (
	EmployeeStatusActive     EmployeeStatus = "active"
	EmployeeStatusTerminated EmployeeStatus = "terminated"
)

// Provenance links a canonical record to the run that last wrote it.
// The fields are excluded from JSON so the row hash covers business data only.
type Provenance struct {
	RowHash     string    `gorm:"type:text" json:"-"`
	ImportRunID string    `gorm:"type:text;index" json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// Hash returns the row hash stored with the record.
func (p *Provenance) Hash() string {
	return p.RowHash
}

// SetProvenance stamps the run that produced the record and its content hash.
func (p *Provenance) SetProvenance(runID, rowHash string) {
	p.ImportRunID = runID
	p.RowHash = rowHash
}

// Employee is one row of the employee roster.
type Employee struct {
	RecordKey            string         `gorm:"type:text;primaryKey" json:"-"`
	EmployeeNumber       int            `gorm:"not null;index" json:"employee_number"`
	LastName             string         `gorm:"type:text" json:"last_name"`
	FirstName            string         `gorm:"type:text" json:"first_name"`
	FullName             string         `gorm:"type:text" json:"full_name"`
	Badge                string         `gorm:"type:text" json:"badge,omitempty"`
	Gender               string         `gorm:"type:text" json:"gender,omitempty"`
	IMSS                 string         `gorm:"type:text" json:"imss,omitempty"`
	BirthDate            *time.Time     `gorm:"type:date" json:"birth_date,omitempty"`
	State                string         `gorm:"type:text" json:"state,omitempty"`
	HireDate             *time.Time     `gorm:"type:date" json:"hire_date,omitempty"`
	SeniorityDate        *time.Time     `gorm:"type:date" json:"seniority_date,omitempty"`
	Company              string         `gorm:"type:text" json:"company,omitempty"`
	EmployerRegistration string         `gorm:"type:text" json:"employer_registration,omitempty"`
	PositionCode         string         `gorm:"type:text" json:"position_code,omitempty"`
	Position             string         `gorm:"type:text" json:"position,omitempty"`
	DepartmentCode       string         `gorm:"type:text" json:"department_code,omitempty"`
	Department           string         `gorm:"type:text;index" json:"department,omitempty"`
	CostCenterCode       string         `gorm:"type:text" json:"cost_center_code,omitempty"`
	CostCenter           string         `gorm:"type:text" json:"cost_center,omitempty"`
	CostCenterSubaccount string         `gorm:"type:text" json:"cost_center_subaccount,omitempty"`
	Classification       string         `gorm:"type:text" json:"classification,omitempty"`
	AreaCode             string         `gorm:"type:text" json:"area_code,omitempty"`
	Area                 string         `gorm:"type:text;index" json:"area,omitempty"`
	Location             string         `gorm:"type:text" json:"location,omitempty"`
	PayrollType          string         `gorm:"type:text" json:"payroll_type,omitempty"`
	Shift                string         `gorm:"type:text" json:"shift,omitempty"`
	StatutoryBenefit     string         `gorm:"type:text" json:"statutory_benefit,omitempty"`
	BenefitPackage       string         `gorm:"type:text" json:"benefit_package,omitempty"`
	TerminationDate      *time.Time     `gorm:"type:date" json:"termination_date,omitempty"`
	ActiveFlag           *bool          `json:"active_flag,omitempty"`
	Status               EmployeeStatus `gorm:"type:text;not null;index" json:"status"`
	Provenance
}

// TableName returns the database table name for Employee.
func (Employee) TableName() string {
	return "employees"
}

// NaturalKey returns the employee number as text.
func (e *Employee) NaturalKey() string {
	return e.RecordKey
}

// EmployeeKey formats the natural key of an employee.
func EmployeeKey(number int) string {
	return strconv.Itoa(number)
}

// Termination is one row of the termination reasons export.
type Termination struct {
	RecordKey      string     `gorm:"type:text;primaryKey" json:"-"`
	EmployeeNumber int        `gorm:"not null;index" json:"employee_number"`
	Date           *time.Time `gorm:"type:date" json:"date,omitempty"`
	Type           string     `gorm:"type:text" json:"type,omitempty"`
	Reason         string     `gorm:"type:text" json:"reason,omitempty"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	Notes          string     `gorm:"type:text" json:"notes,omitempty"`
	Provenance
}

// TableName returns the database table name for Termination.
func (Termination) TableName() string {
	return "terminations"
}

// NaturalKey returns "<employee number>|<date>"; the date part is empty when unknown.
func (t *Termination) NaturalKey() string {
	return t.RecordKey
}

// TerminationKey formats the natural key of a termination.
func TerminationKey(number int, date *time.Time) string {
	key := strconv.Itoa(number) + "|"
	if date != nil {
		key += date.Format(DateLayout)
	}
	return key
}

// AttendanceDay is one employee-day of the attendance export.
type AttendanceDay struct {
	RecordKey      string    `gorm:"type:text;primaryKey" json:"-"`
	EmployeeNumber int       `gorm:"not null;index" json:"employee_number"`
	Date           time.Time `gorm:"type:date;not null;index" json:"date"`
	Weekday        string    `gorm:"type:text" json:"weekday,omitempty"`
	HoursWorked    float64   `json:"hours_worked"`
	IncidentHours  float64   `json:"incident_hours"`
	IncidentCode   string    `gorm:"type:text" json:"incident_code,omitempty"`
	Present        bool      `json:"present"`
	Provenance
}

// TableName returns the database table name for AttendanceDay.
func (AttendanceDay) TableName() string {
	return "attendance_days"
}

// NaturalKey returns "<employee number>|<date>".
func (a *AttendanceDay) NaturalKey() string {
	return a.RecordKey
}

// AttendanceKey formats the natural key of an attendance day.
func AttendanceKey(number int, date time.Time) string {
	return strconv.Itoa(number) + "|" + date.Format(DateLayout)
}

// DateLayout is the canonical ISO date format used in keys and serialized records.
const DateLayout = "2006-01-02"
