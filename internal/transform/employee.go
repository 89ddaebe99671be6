package transform

import (
	"strings"

	"github.com/timmy/hrsync/internal/domain"
)

// EmployeeSpec maps roster rows to Employee records.
var EmployeeSpec = Spec[*domain.Employee]{
	Mapping:  EmployeeMapping,
	Required: []string{FieldEmployeeNumber},
	Map:      mapEmployee,
}

func mapEmployee(row *Row) ([]*domain.Employee, error) {
	number, err := row.Key(FieldEmployeeNumber)
	if err != nil {
		return nil, err
	}

	e := &domain.Employee{
		RecordKey:            domain.EmployeeKey(number),
		EmployeeNumber:       number,
		LastName:             row.String(FieldLastName),
		FirstName:            row.String(FieldFirstName),
		FullName:             row.String(FieldFullName),
		Badge:                row.String(FieldBadge),
		Gender:               row.String(FieldGender),
		IMSS:                 row.String(FieldIMSS),
		BirthDate:            row.Date(FieldBirthDate),
		State:                row.String(FieldState),
		HireDate:             row.Date(FieldHireDate),
		SeniorityDate:        row.Date(FieldSeniorityDate),
		Company:              row.String(FieldCompany),
		EmployerRegistration: row.String(FieldEmployerRegistration),
		PositionCode:         row.String(FieldPositionCode),
		Position:             row.String(FieldPosition),
		DepartmentCode:       row.String(FieldDepartmentCode),
		Department:           row.String(FieldDepartment),
		CostCenterCode:       row.String(FieldCostCenterCode),
		CostCenter:           row.String(FieldCostCenter),
		CostCenterSubaccount: row.String(FieldCostCenterSubaccount),
		Classification:       row.String(FieldClassification),
		AreaCode:             row.String(FieldAreaCode),
		Area:                 row.String(FieldArea),
		Location:             row.String(FieldLocation),
		PayrollType:          row.String(FieldPayrollType),
		Shift:                row.String(FieldShift),
		StatutoryBenefit:     row.String(FieldStatutoryBenefit),
		BenefitPackage:       row.String(FieldBenefitPackage),
		TerminationDate:      row.Date(FieldTerminationDate),
	}
	if e.FullName == "" {
		e.FullName = strings.TrimSpace(e.FirstName + " " + e.LastName)
	}
	if active, ok := row.Bool(FieldActive); ok {
		e.ActiveFlag = &active
	}
	e.Status = EmployeeStatus(e)
	return []*domain.Employee{e}, nil
}

// EmployeeStatus derives the explicit status: terminated when a termination date is
// present or the active column exists and is false.
func EmployeeStatus(e *domain.Employee) domain.EmployeeStatus {
	if e.TerminationDate != nil || (e.ActiveFlag != nil && !*e.ActiveFlag) {
		return domain.EmployeeStatusTerminated
	}
	return domain.EmployeeStatusActive
}
