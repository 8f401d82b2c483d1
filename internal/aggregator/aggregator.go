package aggregator

import (
	"math"

	"vital-monitor/internal/models"
)

// Aggregate 统计分类结果：各报警类别计数、汇总统计、报警记录
// 不修改输入；len(Alerts) 恒等于 Counts 之和
func Aggregate(ds models.Dataset) models.Report {
	report := models.Report{
		Counts: make(map[models.Status]int),
		Alerts: make([]models.AlertRecord, 0),
	}

	var hr, spo2, temp meanAcc
	for _, r := range ds.Readings {
		hr.add(r.HeartRate)
		spo2.add(r.SpO2)
		temp.add(r.Temperature)

		alert, ok := ToAlertRecord(r)
		if !ok {
			continue
		}
		report.Counts[r.Status]++
		report.Alerts = append(report.Alerts, alert)
	}

	report.Summary = models.Summary{
		TotalRecords:   len(ds.Readings),
		TotalAlerts:    len(report.Alerts),
		AvgHeartRate:   hr.mean(),
		AvgSpO2:        spo2.mean(),
		AvgTemperature: temp.mean(),
	}
	return report
}

// ToAlertRecord 非 Normal 读数转换为报警记录
// HighHeartRate -> HR_HIGH(心率), LowOxygen -> SPO2_LOW(血氧), Fever -> TEMP_HIGH(体温)
func ToAlertRecord(r models.Reading) (models.AlertRecord, bool) {
	kind, ok := r.Status.AlertKind()
	if !ok {
		return models.AlertRecord{}, false
	}

	var value float64
	switch kind {
	case models.AlertKindHRHigh:
		value = r.HeartRate
	case models.AlertKindSpO2Low:
		value = r.SpO2
	case models.AlertKindTempHigh:
		value = r.Temperature
	}
	return models.AlertRecord{
		Timestamp: r.Timestamp,
		Kind:      kind,
		Value:     value,
		Status:    r.Status,
	}, true
}

// Round1 保留一位小数
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type meanAcc struct {
	sum float64
	n   int
}

func (m *meanAcc) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m.sum += v
	m.n++
}

func (m *meanAcc) mean() *float64 {
	if m.n == 0 {
		return nil
	}
	v := Round1(m.sum / float64(m.n))
	return &v
}
