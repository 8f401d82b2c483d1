package models

// ThresholdConfig 分类阈值（每个患者/序列一份）
// validate 范围与前端阈值输入控件一致
type ThresholdConfig struct {
	HRHigh   float64 `json:"hr_high" validate:"gte=60,lte=220"`
	SpO2Low  float64 `json:"spo2_low" validate:"gte=70,lte=100"`
	TempHigh float64 `json:"temp_high" validate:"gte=35,lte=42"`
}

const (
	DefaultHRHigh   = 120
	DefaultSpO2Low  = 90
	DefaultTempHigh = 38.0
)

// DefaultThresholds 默认阈值 {120, 90, 38.0}
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		HRHigh:   DefaultHRHigh,
		SpO2Low:  DefaultSpO2Low,
		TempHigh: DefaultTempHigh,
	}
}
