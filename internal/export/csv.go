package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"vital-monitor/internal/models"
)

// TimeLayout 导出时间格式
const TimeLayout = "2006-01-02 15:04:05"

// DatasetHeader 数据集导出表头
var DatasetHeader = []string{
	models.ColumnTime,
	models.ColumnHeartRate,
	models.ColumnSpO2,
	models.ColumnTemperature,
	models.ColumnStatus,
}

// SummaryHeader 汇总导出表头
var SummaryHeader = []string{"total_records", "total_alerts", "avg_hr_bpm", "avg_spo2_pct", "avg_temp_c"}

// WriteDatasetCSV 导出全部读数（Status 使用展示名称）
func WriteDatasetCSV(w io.Writer, ds models.Dataset) error {
	return writeReadings(w, ds, func(models.Reading) bool { return true })
}

// WriteAlertsCSV 只导出非 Normal 读数
func WriteAlertsCSV(w io.Writer, ds models.Dataset) error {
	return writeReadings(w, ds, func(r models.Reading) bool { return r.Status.IsAlert() })
}

func writeReadings(w io.Writer, ds models.Dataset, keep func(models.Reading) bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DatasetHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range ds.Readings {
		if !keep(r) {
			continue
		}
		if err := cw.Write(ReadingRow(r)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV 导出汇总（单行）
func WriteSummaryCSV(w io.Writer, s models.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.Write(SummaryRow(s)); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// ReadingRow 读数转字符串行，缺失值为空
func ReadingRow(r models.Reading) []string {
	return []string{
		r.Timestamp.Format(TimeLayout),
		formatFloat(r.HeartRate),
		formatFloat(r.SpO2),
		formatFloat(r.Temperature),
		r.Status.Label(),
	}
}

// SummaryRow 汇总转字符串行
func SummaryRow(s models.Summary) []string {
	return []string{
		strconv.Itoa(s.TotalRecords),
		strconv.Itoa(s.TotalAlerts),
		formatFloatPtr(s.AvgHeartRate),
		formatFloatPtr(s.AvgSpO2),
		formatFloatPtr(s.AvgTemperature),
	}
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
