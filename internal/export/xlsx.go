package export

import (
	"bytes"
	"fmt"
	"math"

	"vital-monitor/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	alertsSheet  = "Alerts"
)

// BuildWorkbook 生成包含 Summary 和 Alerts 两个工作表的 Excel 文件
func BuildWorkbook(ds models.Dataset, report models.Report) ([]byte, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(alertsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

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
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// Summary：汇总 + 各类别计数
	if err := writeHeader(f, summarySheet, SummaryHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := setRow(f, summarySheet, 2, summaryValues(report.Summary)); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeCounts(f, report, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	// Alerts：非 Normal 读数
	if err := writeHeader(f, alertsSheet, DatasetHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	row := 2
	for _, r := range ds.Readings {
		if !r.Status.IsAlert() {
			continue
		}
		if err := setRow(f, alertsSheet, row, readingValues(r)); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	if err := f.SetColWidth(alertsSheet, "A", "A", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(alertsSheet, "E", "E", 24); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	// 冻结表头
	if err := f.SetPanes(alertsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	return nil
}

// writeCounts 从第 4 行开始写入 Status/Count
func writeCounts(f *excelize.File, report models.Report, style int) error {
	const startRow = 4
	for col, header := range []string{"Status", "Count"} {
		cell, err := excelize.CoordinatesToCellName(col+1, startRow)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(summarySheet, cell, header); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(summarySheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
	}
	row := startRow + 1
	for _, st := range models.AlertStatuses {
		if err := setRow(f, summarySheet, row, []interface{}{st.Label(), report.Counts[st]}); err != nil {
			return err
		}
		row++
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}

func summaryValues(s models.Summary) []interface{} {
	return []interface{}{
		s.TotalRecords,
		s.TotalAlerts,
		cellFloatPtr(s.AvgHeartRate),
		cellFloatPtr(s.AvgSpO2),
		cellFloatPtr(s.AvgTemperature),
	}
}

func readingValues(r models.Reading) []interface{} {
	return []interface{}{
		r.Timestamp.Format(TimeLayout),
		cellFloat(r.HeartRate),
		cellFloat(r.SpO2),
		cellFloat(r.Temperature),
		r.Status.Label(),
	}
}

// cellFloat 缺失值写空单元格
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return ""
	}
	return v
}

func cellFloatPtr(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
