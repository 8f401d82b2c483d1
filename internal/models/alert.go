package models

import "time"

// AlertRecord 由非 Normal 读数派生的报警记录（每条报警读数恰好一条）
type AlertRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      AlertKind `json:"kind"`
	Value     float64   `json:"value"`
	Status    Status    `json:"status"`
}

// 持久化报警的处理状态
const (
	AlertStateNew          = "new"
	AlertStateAcknowledged = "acknowledged"
)

// StoredAlert 已持久化的报警（对应 alerts 表）
type StoredAlert struct {
	EventID        string     `json:"event_id" db:"event_id"`
	PatientID      string     `json:"patient_id" db:"patient_id"`
	AlertRecord               // 时间、类型、数值、读数状态
	State          string     `json:"state" db:"status"` // new, acknowledged
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AckTime        *time.Time `json:"ack_time,omitempty" db:"ack_time"`
	Note           *string    `json:"note,omitempty" db:"note"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Patient 患者
type Patient struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
