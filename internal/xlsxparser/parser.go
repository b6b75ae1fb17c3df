// =============================================================================
// Invoice Batch Import - XLSX Parser
// =============================================================================
//
// This module reads invoice line items from an Excel workbook. The expected
// layout mirrors the delimited format: the first row of the sheet holds the
// column headers and every following row is one line item.
//
//   | InvoiceNumber | CustomerName | IssueDate  | DueDate    | Description | Quantity | UnitPrice |
//   |---------------|--------------|------------|------------|-------------|----------|-----------|
//   | INV-1         | Acme         | 2024-01-01 | 2024-01-31 | Widget      | 2        | 10.00     |
//
// Only the first worksheet is read unless a sheet name is given.
//
// CELL VALUES:
//   Cells are read raw, not display-formatted, so "#,##0.00" or currency
//   formats never turn a number into text. Date columns holding a date
//   serial are converted back to YYYY-MM-DD.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/invoice-batch-import/internal/types"
)

// Parse reads the first worksheet of the workbook in r.
func Parse(r io.Reader) ([]types.Record, error) {
	return ParseSheet(r, "")
}

// ParseSheet reads the named worksheet, or the first one when sheet is "".
//
// RETURNS:
//   - The records in sheet order, blank rows skipped.
//   - *types.ParseError when the workbook or sheet cannot be read.
//   - *types.EmptyInputError when the sheet has no data rows.
func ParseSheet(r io.Reader, sheet string) ([]types.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &types.ParseError{Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, &types.EmptyInputError{}
		}
		sheet = sheets[0]
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &types.ParseError{Err: fmt.Errorf("failed to read sheet %q: %w", sheet, err)}
	}
	if len(rows) == 0 {
		return nil, &types.EmptyInputError{}
	}

	headers := cleanHeaders(rows[0])
	records := make([]types.Record, 0, len(rows)-1)

	for idx, row := range rows[1:] {
		if isRowEmpty(row) {
			continue
		}

		// GetRows drops trailing empty cells, so short rows are normal here.
		fields := make(map[string]string, len(headers))
		for i, header := range headers {
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if dateColumns[header] {
				value = serialToDate(value, date1904)
			}
			fields[header] = value
		}
		// rows[0] is sheet row 1.
		records = append(records, types.Record{Fields: fields, Line: idx + 2})
	}

	if len(records) == 0 {
		return nil, &types.EmptyInputError{}
	}
	return records, nil
}

var dateColumns = map[string]bool{
	types.ColIssueDate: true,
	types.ColDueDate:   true,
}

// serialToDate turns an Excel date serial into YYYY-MM-DD. Anything that is
// not a plain number is returned unchanged.
func serialToDate(value string, date1904 bool) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial <= 0 {
		return value
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return value
	}
	return t.Format("2006-01-02")
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			name, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				name = fmt.Sprintf("%d", i+1)
			}
			header = "Column_" + name
		}
		cleaned[i] = header
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
