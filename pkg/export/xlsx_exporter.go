package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Schedule"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the title on row 1 (merged across all columns), headers on
// row 2 and data from row 3 onwards.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(data.Headers))
	if err != nil {
		return nil, fmt.Errorf("resolve column: %w", err)
	}
	if err := f.SetColWidth(xlsxSheet, "A", "A", 14); err != nil {
		return nil, fmt.Errorf("set width: %w", err)
	}
	if len(data.Headers) > 1 {
		if err := f.SetColWidth(xlsxSheet, "B", lastCol, 26); err != nil {
			return nil, fmt.Errorf("set width: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("body style: %w", err)
	}

	if err := f.SetCellValue(xlsxSheet, "A1", data.Title); err != nil {
		return nil, fmt.Errorf("write title: %w", err)
	}
	if len(data.Headers) > 1 {
		if err := f.MergeCell(xlsxSheet, "A1", lastCol+"1"); err != nil {
			return nil, fmt.Errorf("merge title: %w", err)
		}
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", lastCol+"2", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	headers := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A2", &headers); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}

	for r, row := range data.Rows {
		values := make([]interface{}, len(data.Headers))
		for i := range data.Headers {
			values[i] = cell(row, i)
		}
		start, _ := excelize.CoordinatesToCellName(1, r+3)
		if err := f.SetSheetRow(xlsxSheet, start, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r, err)
		}
	}
	if len(data.Rows) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(data.Headers), len(data.Rows)+2)
		if err := f.SetCellStyle(xlsxSheet, "A3", end, bodyStyle); err != nil {
			return nil, fmt.Errorf("style body: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
