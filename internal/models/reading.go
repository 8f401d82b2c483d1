package models

import (
	"encoding/json"
	"math"
	"time"
)

// Reading 单条生命体征读数
// 数值缺失（无法解析）时为 NaN，JSON 中输出为 null
type Reading struct {
	Timestamp   time.Time
	HeartRate   float64 // bpm
	SpO2        float64 // %
	Temperature float64 // °C
	Status      Status
}

type readingJSON struct {
	Timestamp   time.Time `json:"timestamp"`
	HeartRate   *float64  `json:"heart_rate"`
	SpO2        *float64  `json:"spo2"`
	Temperature *float64  `json:"temperature"`
	Status      Status    `json:"status"`
}

// MarshalJSON NaN 输出为 null
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		Timestamp:   r.Timestamp,
		HeartRate:   FloatPtr(r.HeartRate),
		SpO2:        FloatPtr(r.SpO2),
		Temperature: FloatPtr(r.Temperature),
		Status:      r.Status,
	})
}

// UnmarshalJSON null 还原为 NaN
func (r *Reading) UnmarshalJSON(data []byte) error {
	var v readingJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.Timestamp = v.Timestamp
	r.HeartRate = FloatValue(v.HeartRate)
	r.SpO2 = FloatValue(v.SpO2)
	r.Temperature = FloatValue(v.Temperature)
	r.Status = v.Status
	return nil
}

// Dataset 按时间升序排列的读数序列（允许重复时间戳和不规则采样间隔）
type Dataset struct {
	Readings []Reading `json:"readings"`
}

// Len 读数数量
func (d Dataset) Len() int {
	return len(d.Readings)
}

// Clone 深拷贝
func (d Dataset) Clone() Dataset {
	out := make([]Reading, len(d.Readings))
	copy(out, d.Readings)
	return Dataset{Readings: out}
}

// HeartRates 心率序列（保持顺序）
func (d Dataset) HeartRates() []float64 {
	out := make([]float64, len(d.Readings))
	for i, r := range d.Readings {
		out[i] = r.HeartRate
	}
	return out
}

// FloatPtr NaN/Inf 返回 nil
func FloatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FloatValue nil 返回 NaN
func FloatValue(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
