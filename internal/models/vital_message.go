package models

import (
	"encoding/json"
	"time"
)

// VitalMessage 设备上报的一条原始读数（MQTT -> Redis Streams）
// Payload 的键名任意，由 SchemaNormalizer 统一映射
type VitalMessage struct {
	PatientID  string                 `json:"patient_id"`
	DeviceID   string                 `json:"device_id,omitempty"`
	Topic      string                 `json:"topic,omitempty"`
	ReceivedAt int64                  `json:"received_at"` // unix 毫秒
	Payload    map[string]interface{} `json:"payload"`
}

// ReceivedTime 接收时间
func (m *VitalMessage) ReceivedTime() time.Time {
	return time.UnixMilli(m.ReceivedAt)
}

// ParseVitalMessage 从 Redis Streams 消息的 data 字段解析
func ParseVitalMessage(values map[string]interface{}) (*VitalMessage, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, ErrInvalidDataFormat
	}

	var msg VitalMessage
	if err := json.Unmarshal([]byte(dataStr), &msg); err != nil {
		return nil, &DataFormatError{Message: "invalid vital message: " + err.Error()}
	}
	if msg.PatientID == "" {
		return nil, &DataFormatError{Message: "vital message without patient_id"}
	}
	return &msg, nil
}

// ErrInvalidDataFormat 数据格式错误
var ErrInvalidDataFormat = &DataFormatError{Message: "invalid data format"}

// DataFormatError 数据格式错误类型
type DataFormatError struct {
	Message string
}

func (e *DataFormatError) Error() string {
	return e.Message
}
