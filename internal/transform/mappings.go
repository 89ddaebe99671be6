package transform

// Logical field names shared by the mappings.
const (
	FieldEmployeeNumber       = "employee_number"
	FieldLastName             = "last_name"
	FieldFirstName            = "first_name"
	FieldFullName             = "full_name"
	FieldBadge                = "badge"
	FieldGender               = "gender"
	FieldIMSS                 = "imss"
	FieldBirthDate            = "birth_date"
	FieldState                = "state"
	FieldHireDate             = "hire_date"
	FieldSeniorityDate        = "seniority_date"
	FieldCompany              = "company"
	FieldEmployerRegistration = "employer_registration"
	FieldPositionCode         = "position_code"
	FieldPosition             = "position"
	FieldDepartmentCode       = "department_code"
	FieldDepartment           = "department"
	FieldCostCenterCode       = "cost_center_code"
	FieldCostCenter           = "cost_center"
	FieldCostCenterSubaccount = "cost_center_subaccount"
	FieldClassification       = "classification"
	FieldAreaCode             = "area_code"
	FieldArea                 = "area"
	FieldLocation             = "location"
	FieldPayrollType          = "payroll_type"
	FieldShift                = "shift"
	FieldStatutoryBenefit     = "statutory_benefit"
	FieldBenefitPackage       = "benefit_package"
	FieldTerminationDate      = "termination_date"
	FieldActive               = "active"

	FieldDate          = "date"
	FieldType          = "type"
	FieldReason        = "reason"
	FieldDescription   = "description"
	FieldNotes         = "notes"
	FieldHoursWorked   = "hours_worked"
	FieldOvertimeHours = "overtime_hours"
	FieldIncidentHours = "incident_hours"
	FieldIncidentCode  = "incident_code"
	FieldPresent       = "present"
)

var employeeNumberHeaders = []string{"Número", "Numero", "No. Empleado", "Num Empleado", "Número de Empleado", "#", "ID", "No", "Employee ID", "Empleado"}

// EmployeeMapping covers the roster export ("Validacion Alta de empleados").
var EmployeeMapping = Mapping{
	FieldEmployeeNumber:       append(append([]string{}, employeeNumberHeaders...), "Gafete"),
	FieldLastName:             {"Apellidos", "Apellido", "Last Name", "LastName"},
	FieldFirstName:            {"Nombres", "Nombre", "First Name", "FirstName"},
	FieldFullName:             {"Nombre Completo", "Full Name"},
	FieldBadge:                {"Gafete"},
	FieldGender:               {"Género", "Genero", "Sexo"},
	FieldIMSS:                 {"IMSS", "NSS"},
	FieldBirthDate:            {"Fecha de Nacimiento", "Fecha Nacimiento"},
	FieldState:                {"Estado"},
	FieldHireDate:             {"Fecha Ingreso", "Fecha de Ingreso", "Fecha Alta"},
	FieldSeniorityDate:        {"Fecha Antigüedad", "Fecha de Antigüedad"},
	FieldCompany:              {"Empresa"},
	FieldEmployerRegistration: {"No. Registro Patronal", "Registro Patronal"},
	FieldPositionCode:         {"CodigoPuesto", "Código Puesto", "Codigo de Puesto"},
	FieldPosition:             {"Puesto"},
	FieldDepartmentCode:       {"Código Depto", "CodigoDepto", "Codigo Departamento"},
	FieldDepartment:           {"Departamento", "Depto"},
	FieldCostCenterCode:       {"Código de CC", "CodigoCC"},
	FieldCostCenter:           {"CC", "Centro de Costos"},
	FieldCostCenterSubaccount: {"Subcuenta CC"},
	FieldClassification:       {"Clasificación"},
	FieldAreaCode:             {"Codigo Area", "Código Área"},
	FieldArea:                 {"Área"},
	FieldLocation:             {"Ubicación"},
	FieldPayrollType:          {"Tipo de Nómina", "Tipo Nómina"},
	FieldShift:                {"Turno"},
	FieldStatutoryBenefit:     {"Prestación de Ley"},
	FieldBenefitPackage:       {"Paquete de Prestaciones"},
	FieldTerminationDate:      {"Fecha Baja", "Fecha de Baja"},
	FieldActive:               {"Activo", "Active"},
}

// TerminationMapping covers the termination reasons export ("MotivosBaja").
var TerminationMapping = Mapping{
	FieldEmployeeNumber: append([]string{"#"}, employeeNumberHeaders...),
	FieldDate:           {"Fecha", "Fecha Baja", "Fecha de Baja"},
	FieldType:           {"Tipo", "Tipo de Baja"},
	FieldReason:         {"Motivo", "Motivo de Baja"},
	FieldDescription:    {"Descripción"},
	FieldNotes:          {"Observaciones"},
}

// AttendanceMapping covers the vertical attendance layout, one row per employee-day.
var AttendanceMapping = Mapping{
	FieldEmployeeNumber: employeeNumberHeaders,
	FieldDate:           {"Fecha", "Date", "Día", "Dia"},
	FieldHoursWorked:    {"Horas Trabajadas", "Horas", "Hours", "Horas Ord", "Horas Ordinarias"},
	FieldOvertimeHours:  {"Horas Extra", "Horas TE", "TE"},
	FieldIncidentHours:  {"Horas Incidencia", "Horas Incidencias"},
	FieldIncidentCode:   {"Incidencia", "Incidencias", "Codigo Incidencia"},
	FieldPresent:        {"Presente", "Asistencia", "Present"},
}

// weekdayBlocks are the day prefixes of the weekly payroll-prep export ("Prenomina Horizontal"),
// where each day carries a date column plus ORD, TE and INC columns.
var weekdayBlocks = []string{"LUN", "MAR", "MIE", "JUE", "VIE", "SAB", "DOM"}

func weekdayColumns(prefix string) (ord, te, inc []string) {
	variants := func(suffix string) []string {
		return []string{
			prefix + "-" + suffix,
			prefix + " - " + suffix,
			prefix + "- " + suffix,
			prefix + " -" + suffix,
			prefix + " " + suffix,
		}
	}
	return variants("ORD"), variants("TE"), variants("INC")
}
