package decoder

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// readXLSX returns the cells of the first sheet. Raw values keep date cells as serial numbers.
func readXLSX(raw []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Reason: "open xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &DecodeError{Reason: "xlsx has no sheets"}
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Reason: "read xlsx sheet " + sheets[0], Err: err}
	}
	return rows, nil
}

// readXLS returns the cells of the first sheet of a legacy BIFF workbook.
func readXLS(raw []byte) (records [][]string, err error) {
	// The BIFF reader panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, &DecodeError{Reason: "read xls", Err: fmt.Errorf("%v", r)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(raw), "utf-8")
	if err != nil {
		return nil, &DecodeError{Reason: "open xls", Err: err}
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, &DecodeError{Reason: "xls has no sheets"}
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		records = append(records, cells)
	}
	return records, nil
}
