package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vital-monitor/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertsRepository 报警仓库
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建报警仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

// insertAlerts 在调用方事务内写入报警记录（每条 AlertRecord 一行，状态 new），返回 event_id
func insertAlerts(ctx context.Context, tx *sql.Tx, patientID string, alerts []models.AlertRecord) ([]string, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alerts (event_id, patient_id, time, kind, value, reading_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare alert insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		eventID := uuid.New().String()
		if _, err := stmt.ExecContext(ctx,
			eventID, patientID, a.Timestamp, string(a.Kind), a.Value, string(a.Status), models.AlertStateNew,
		); err != nil {
			return nil, fmt.Errorf("failed to insert alert: %w", err)
		}
		ids = append(ids, eventID)
	}
	return ids, nil
}

// ListAlerts 按时间倒序列出患者报警，limit <= 0 不限制
func (r *AlertsRepository) ListAlerts(ctx context.Context, patientID string, limit int) ([]models.StoredAlert, error) {
	query := `
		SELECT event_id, patient_id, time, kind, value, reading_status,
		       status, acknowledged_by, ack_time, note, created_at
		FROM alerts
		WHERE patient_id = $1
		ORDER BY time DESC, created_at DESC
	`
	args := []interface{}{patientID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.StoredAlert, 0)
	for rows.Next() {
		var a models.StoredAlert
		var kind, readingStatus string
		var ackBy, note sql.NullString
		var ackTime sql.NullTime
		if err := rows.Scan(
			&a.EventID,
			&a.PatientID,
			&a.Timestamp,
			&kind,
			&a.Value,
			&readingStatus,
			&a.State,
			&ackBy,
			&ackTime,
			&note,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		a.Kind = models.AlertKind(kind)
		a.Status = models.Status(readingStatus)
		if ackBy.Valid {
			a.AcknowledgedBy = &ackBy.String
		}
		if ackTime.Valid {
			a.AckTime = &ackTime.Time
		}
		if note.Valid {
			a.Note = &note.String
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert 确认报警
func (r *AlertsRepository) AcknowledgeAlert(ctx context.Context, eventID, by, note string) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	var notePtr interface{}
	if note != "" {
		notePtr = note
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET status = $2, acknowledged_by = $3, ack_time = $4, note = $5
		WHERE event_id = $1
	`, eventID, models.AlertStateAcknowledged, by, time.Now().UTC(), notePtr)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alert %s: %w", eventID, ErrNotFound)
	}
	return nil
}
