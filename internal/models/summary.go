package models

// Summary 汇总统计（均值保留一位小数，无数值时为 nil）
type Summary struct {
	TotalRecords   int      `json:"total_records"`
	TotalAlerts    int      `json:"total_alerts"`
	AvgHeartRate   *float64 `json:"avg_hr_bpm"`
	AvgSpO2        *float64 `json:"avg_spo2_pct"`
	AvgTemperature *float64 `json:"avg_temp_c"`
}

// Report 一次聚合的完整输出
type Report struct {
	Counts  map[Status]int `json:"counts"` // 仅包含非 Normal 状态
	Summary Summary        `json:"summary"`
	Alerts  []AlertRecord  `json:"alerts"`
}
