package transformer

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"vital-monitor/internal/models"

	"github.com/araddon/dateparse"
)

// Bounds 生理范围（闭区间）
type Bounds struct {
	Min float64
	Max float64
}

// Clip 钳位到范围内，NaN 原样返回
func (b Bounds) Clip(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// 生理范围
var (
	HeartRateBounds   = Bounds{Min: 30, Max: 220}
	SpO2Bounds        = Bounds{Min: 50, Max: 100}
	TemperatureBounds = Bounds{Min: 33, Max: 43}
)

// SanitizeStats 清洗统计
type SanitizeStats struct {
	InputRows     int `json:"input_rows"`
	DroppedRows   int `json:"dropped_rows"`   // 时间戳无效被丢弃
	MissingValues int `json:"missing_values"` // 无法解析的数值
	ClippedValues int `json:"clipped_values"` // 超出生理范围被钳位
}

// Sanitizer 读数清洗：解析时间戳、数值转换、钳位、排序
type Sanitizer struct {
	loc *time.Location
}

// NewSanitizer 创建清洗器，loc 为不带时区的时间戳所使用的时区（nil 为 UTC）
func NewSanitizer(loc *time.Location) *Sanitizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Sanitizer{loc: loc}
}

// Sanitize 将已标准化的表转换为 Dataset
// 时间戳无效的行被丢弃（计入 stats.DroppedRows），输入中的 Status 列被忽略
func (s *Sanitizer) Sanitize(table models.Table) (models.Dataset, SanitizeStats, error) {
	stats := SanitizeStats{InputRows: len(table.Rows)}

	cols := make([]int, len(models.CanonicalColumns))
	var missing []string
	for i, name := range models.CanonicalColumns {
		cols[i] = table.Index(name)
		if cols[i] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return models.Dataset{}, stats, &SchemaError{Missing: missing}
	}

	readings := make([]models.Reading, 0, len(table.Rows))
	for row := range table.Rows {
		ts, ok := s.parseTime(table.Cell(row, cols[0]))
		if !ok {
			stats.DroppedRows++
			continue
		}

		r := models.Reading{Timestamp: ts}
		r.HeartRate = s.coerce(table.Cell(row, cols[1]), HeartRateBounds, &stats)
		r.SpO2 = s.coerce(table.Cell(row, cols[2]), SpO2Bounds, &stats)
		r.Temperature = s.coerce(table.Cell(row, cols[3]), TemperatureBounds, &stats)
		readings = append(readings, r)
	}

	if len(readings) == 0 {
		return models.Dataset{}, stats, &EmptyDatasetError{InputRows: stats.InputRows}
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	return models.Dataset{Readings: readings}, stats, nil
}

func (s *Sanitizer) parseTime(raw string) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, false
	}
	ts, err := dateparse.ParseIn(v, s.loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func (s *Sanitizer) coerce(raw string, b Bounds, stats *SanitizeStats) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) {
		stats.MissingValues++
		return math.NaN()
	}
	clipped := b.Clip(v)
	if clipped != v {
		stats.ClippedValues++
	}
	return clipped
}
