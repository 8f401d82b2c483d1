package models

import "strings"

// Status 读数分类状态（由阈值计算，不接受输入值）
type Status string

const (
	StatusNormal        Status = "Normal"
	StatusHighHeartRate Status = "HighHeartRate"
	StatusLowOxygen     Status = "LowOxygen"
	StatusFever         Status = "Fever"
)

// AlertStatuses 非 Normal 状态，按分类优先级排列
var AlertStatuses = []Status{StatusHighHeartRate, StatusLowOxygen, StatusFever}

// Label 导出/展示用名称（与原有 CSV 中的 Status 取值一致）
func (s Status) Label() string {
	switch s {
	case StatusHighHeartRate:
		return "High Heart Rate Alert"
	case StatusLowOxygen:
		return "Low Oxygen Alert"
	case StatusFever:
		return "Fever Alert"
	default:
		return "Normal"
	}
}

// IsAlert 是否为报警状态
func (s Status) IsAlert() bool {
	return s == StatusHighHeartRate || s == StatusLowOxygen || s == StatusFever
}

// AlertKind 返回状态对应的报警类型
func (s Status) AlertKind() (AlertKind, bool) {
	switch s {
	case StatusHighHeartRate:
		return AlertKindHRHigh, true
	case StatusLowOxygen:
		return AlertKindSpO2Low, true
	case StatusFever:
		return AlertKindTempHigh, true
	default:
		return "", false
	}
}

// ParseStatus 解析状态名称，兼容展示名称
func ParseStatus(s string) (Status, bool) {
	v := strings.TrimSpace(s)
	for _, st := range []Status{StatusNormal, StatusHighHeartRate, StatusLowOxygen, StatusFever} {
		if strings.EqualFold(v, string(st)) || strings.EqualFold(v, st.Label()) {
			return st, true
		}
	}
	return "", false
}

// AlertKind 报警类型
type AlertKind string

const (
	AlertKindHRHigh   AlertKind = "HR_HIGH"
	AlertKindSpO2Low  AlertKind = "SPO2_LOW"
	AlertKindTempHigh AlertKind = "TEMP_HIGH"
)
