package pipeline

import (
	"time"

	"vital-monitor/internal/aggregator"
	"vital-monitor/internal/evaluator"
	"vital-monitor/internal/models"
	"vital-monitor/internal/transformer"
)

// Options 处理选项
type Options struct {
	Window   int            // 异常检测窗口，<= 0 使用默认值
	Location *time.Location // 无时区时间戳所用时区，nil 为 UTC
	Fields   []transformer.FieldSpec
}

// Result 一次完整处理的输出
type Result struct {
	Dataset   models.Dataset            `json:"dataset"`
	Anomalies []bool                    `json:"anomalies"` // 与 Dataset.Readings 一一对应
	Report    models.Report             `json:"report"`
	Stats     transformer.SanitizeStats `json:"stats"`
}

// AnomalyCount 异常读数数量
func (r *Result) AnomalyCount() int {
	n := 0
	for _, a := range r.Anomalies {
		if a {
			n++
		}
	}
	return n
}

// Prepare 标准化 + 清洗
func Prepare(table models.Table, opts Options) (models.Dataset, transformer.SanitizeStats, error) {
	normalized, err := transformer.NewSchemaNormalizer(opts.Fields).Normalize(table)
	if err != nil {
		return models.Dataset{}, transformer.SanitizeStats{InputRows: len(table.Rows)}, err
	}
	return transformer.NewSanitizer(opts.Location).Sanitize(normalized)
}

// Analyze 原始表格 -> 标准化 -> 清洗 -> 分类 -> 异常检测 -> 聚合
func Analyze(table models.Table, cfg models.ThresholdConfig, opts Options) (*Result, error) {
	ds, stats, err := Prepare(table, opts)
	if err != nil {
		return nil, err
	}
	res := Evaluate(ds, cfg, opts)
	res.Stats = stats
	return res, nil
}

// Evaluate 对已清洗的数据重新分类、检测并聚合（阈值变更或从存储加载时使用）
func Evaluate(ds models.Dataset, cfg models.ThresholdConfig, opts Options) *Result {
	return EvaluateWithHistory(ds, nil, cfg, opts)
}

// EvaluateWithHistory history 为 ds 之前的已存储心率（按时间升序），仅用于填充异常检测窗口
func EvaluateWithHistory(ds models.Dataset, history []float64, cfg models.ThresholdConfig, opts Options) *Result {
	classified := evaluator.Reclassify(ds, cfg)
	detector := evaluator.NewAnomalyDetector(opts.Window)

	return &Result{
		Dataset:   classified,
		Anomalies: detector.DetectWithHistory(history, classified.HeartRates()),
		Report:    aggregator.Aggregate(classified),
		Stats:     transformer.SanitizeStats{InputRows: ds.Len()},
	}
}
