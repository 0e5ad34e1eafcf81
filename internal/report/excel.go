// Package report renders tracking data as Excel workbooks.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"wardtrack-server/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// ScanLogHeader is the header row of the scan log export.
var ScanLogHeader = []string{
	"Scanned At (UTC)",
	"Ward",
	"Patient ID",
	"Tag Type",
	"Authoritative",
	"Scanned By",
	"Raw Tag",
}

// InconsistencyHeader is the header row of the inconsistency export.
var InconsistencyHeader = []string{
	"Detected At (UTC)",
	"Patient ID",
	"First Ward",
	"Second Ward",
	"Minutes Apart",
	"Cleared",
	"Cleared By",
	"Cleared At (UTC)",
	"Notes",
}

// ScanLogWorkbook renders scan log entries.
func ScanLogWorkbook(entries []models.ScanLog) ([]byte, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{
			e.ScannedAt.UTC().Format(timeLayout),
			e.Ward,
			e.PatientID,
			e.TagType,
			yesNo(e.Authoritative),
			e.ScannedBy,
			e.PatientTag,
		})
	}
	return workbook("Scan Logs", ScanLogHeader, []float64{20, 18, 20, 12, 14, 20, 50}, rows)
}

// InconsistencyWorkbook renders location inconsistencies.
func InconsistencyWorkbook(incs []models.LocationInconsistency) ([]byte, error) {
	rows := make([][]any, 0, len(incs))
	for _, inc := range incs {
		clearedAt := ""
		if inc.ClearedAt != nil {
			clearedAt = inc.ClearedAt.UTC().Format(timeLayout)
		}
		rows = append(rows, []any{
			inc.DetectedAt.UTC().Format(timeLayout),
			inc.PatientID,
			inc.FirstWard,
			inc.SecondWard,
			strconv.FormatFloat(inc.TimeDifferenceMinutes, 'f', 2, 64),
			yesNo(inc.Cleared),
			inc.ClearedBy,
			clearedAt,
			inc.Notes,
		})
	}
	return workbook("Inconsistencies", InconsistencyHeader, []float64{20, 20, 18, 18, 14, 10, 20, 20, 40}, rows)
}

// ExportFilename names an export file with its generation time.
func ExportFilename(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, at.UTC().Format("20060102_150405"))
}

func workbook(sheet string, header []string, widths []float64, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
