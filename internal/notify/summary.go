package notify

import (
	"fmt"
	"strings"
	"time"

	"vital-monitor/internal/models"
)

// DefaultSubject 默认主题
const DefaultSubject = "IoT Health Alerts"

// BuildSummaryMessage 根据聚合结果生成纯文本通知
func BuildSummaryMessage(to, patientID string, report models.Report, at time.Time) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "[IoT Alert] Patient %s: %d alerts at %s\n",
		patientID, report.Summary.TotalAlerts, at.Format("2006-01-02T15:04:05"))

	for _, st := range models.AlertStatuses {
		if n := report.Counts[st]; n > 0 {
			fmt.Fprintf(&b, "%s: %d\n", st.Label(), n)
		}
	}

	s := report.Summary
	fmt.Fprintf(&b, "Records: %d, Avg HR: %s bpm, Avg SpO2: %s %%, Avg Temp: %s C",
		s.TotalRecords, formatAvg(s.AvgHeartRate), formatAvg(s.AvgSpO2), formatAvg(s.AvgTemperature))

	return Message{
		To:        to,
		Subject:   DefaultSubject,
		Body:      b.String(),
		PatientID: patientID,
		CreatedAt: at,
	}
}

func formatAvg(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}
