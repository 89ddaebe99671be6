package transform

import "github.com/timmy/hrsync/internal/domain"

// TerminationSpec maps termination reason rows to Termination records.
var TerminationSpec = Spec[*domain.Termination]{
	Mapping:  TerminationMapping,
	Required: []string{FieldEmployeeNumber, FieldDate},
	Map:      mapTermination,
}

func mapTermination(row *Row) ([]*domain.Termination, error) {
	number, err := row.Key(FieldEmployeeNumber)
	if err != nil {
		return nil, err
	}
	date := row.Date(FieldDate)

	return []*domain.Termination{{
		RecordKey:      domain.TerminationKey(number, date),
		EmployeeNumber: number,
		Date:           date,
		Type:           row.String(FieldType),
		Reason:         row.String(FieldReason),
		Description:    row.String(FieldDescription),
		Notes:          row.String(FieldNotes),
	}}, nil
}
