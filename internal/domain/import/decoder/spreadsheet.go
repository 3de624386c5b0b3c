package decoder

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// formatted cell values that only a date number format produces
var dateFormatted = regexp.MustCompile(
	`^\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}|^\d{1,2}[ -][A-Za-z]{3}|^[A-Za-z]{3}[ -]\d{1,2}`,
)

// DecodeXLSX reads the first sheet of an xlsx workbook. Numbers come from the raw cell
// values so they carry no grouping; numeric cells whose display format is a date are
// rendered as YYYY-MM-DD.
func DecodeXLSX(content []byte) (rows []Row, err error) {
	defer recoverWorkbook(&rows, &err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	sheet := sheets[0]

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %s: %w", ErrUnreadableWorkbook, sheet, err)
	}
	display, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %s: %w", ErrUnreadableWorkbook, sheet, err)
	}

	for i, cells := range raw {
		row := make(Row, len(cells))
		for j, v := range cells {
			row[j] = spreadsheetCell(v, displayCell(display, i, j))
		}
		if !row.IsEmpty() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// DecodeXLS reads the first sheet of a legacy BIFF workbook.
func DecodeXLS(content []byte) (rows []Row, err error) {
	defer recoverWorkbook(&rows, &err)

	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		r := sheet.Row(i)
		if r == nil {
			continue
		}
		row := make(Row, 0, r.LastCol())
		for j := 0; j < r.LastCol(); j++ {
			row = append(row, r.Col(j))
		}
		if !row.IsEmpty() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func spreadsheetCell(raw, display string) string {
	if display == "" || display == raw {
		return raw
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil || !dateFormatted.MatchString(display) {
		return raw
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02")
}

func displayCell(rows [][]string, i, j int) string {
	if i >= len(rows) || j >= len(rows[i]) {
		return ""
	}
	return rows[i][j]
}

// recoverWorkbook turns a panic inside a workbook reader into an error so a corrupt
// upload yields zero rows.
func recoverWorkbook(rows *[]Row, err *error) {
	if r := recover(); r != nil {
		*rows = nil
		*err = fmt.Errorf("%w: %v", ErrUnreadableWorkbook, r)
	}
}
