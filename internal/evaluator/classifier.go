package evaluator

import (
	"vital-monitor/internal/models"
)

// Classify 按固定顺序匹配第一条规则：心率过高 > 血氧过低 > 体温过高
// NaN 不满足任何规则（比较结果恒为 false），落入下一条规则或 Normal
func Classify(heartRate, spo2, temperature float64, cfg models.ThresholdConfig) models.Status {
	switch {
	case heartRate > cfg.HRHigh:
		return models.StatusHighHeartRate
	case spo2 < cfg.SpO2Low:
		return models.StatusLowOxygen
	case temperature > cfg.TempHigh:
		return models.StatusFever
	default:
		return models.StatusNormal
	}
}

// ClassifyReading 对单条读数分类
func ClassifyReading(r models.Reading, cfg models.ThresholdConfig) models.Status {
	return Classify(r.HeartRate, r.SpO2, r.Temperature, cfg)
}

// Reclassify 用给定阈值重新计算全部状态，返回新的 Dataset（输入不变）
func Reclassify(ds models.Dataset, cfg models.ThresholdConfig) models.Dataset {
	out := ds.Clone()
	for i := range out.Readings {
		out.Readings[i].Status = ClassifyReading(out.Readings[i], cfg)
	}
	return out
}
