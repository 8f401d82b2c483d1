package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"vital-monitor/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ObservationsRepository 读数仓库
type ObservationsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewObservationsRepository 创建读数仓库
func NewObservationsRepository(db *sql.DB, logger *zap.Logger) *ObservationsRepository {
	return &ObservationsRepository{
		db:     db,
		logger: logger,
	}
}

// copyObservations 在调用方事务内批量写入读数（COPY）；NaN 写为 NULL
func copyObservations(ctx context.Context, tx *sql.Tx, patientID string, readings []models.Reading) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("observations", "patient_id", "time", "hr", "spo2", "temp", "status"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	defer stmt.Close()

	for _, rd := range readings {
		if _, err := stmt.ExecContext(ctx,
			patientID,
			rd.Timestamp,
			nullFloat(rd.HeartRate),
			nullFloat(rd.SpO2),
			nullFloat(rd.Temperature),
			string(rd.Status),
		); err != nil {
			return fmt.Errorf("failed to copy observation: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	return nil
}

// LoadObservations 按时间升序加载患者全部读数（状态需由调用方按当前阈值重新计算）
func (r *ObservationsRepository) LoadObservations(ctx context.Context, patientID string) (models.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT time, hr, spo2, temp
		FROM observations
		WHERE patient_id = $1
		ORDER BY time, id
	`, patientID)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("failed to load observations: %w", err)
	}
	defer rows.Close()

	readings := make([]models.Reading, 0)
	for rows.Next() {
		var rd models.Reading
		var hr, spo2, temp sql.NullFloat64
		if err := rows.Scan(&rd.Timestamp, &hr, &spo2, &temp); err != nil {
			return models.Dataset{}, fmt.Errorf("failed to scan observation: %w", err)
		}
		rd.HeartRate = floatOrNaN(hr)
		rd.SpO2 = floatOrNaN(spo2)
		rd.Temperature = floatOrNaN(temp)
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return models.Dataset{}, fmt.Errorf("failed to iterate observations: %w", err)
	}
	return models.Dataset{Readings: readings}, nil
}

// RecentHeartRates 最近 limit 条心率（按时间升序），用于流式异常检测的窗口历史
func (r *ObservationsRepository) RecentHeartRates(ctx context.Context, patientID string, limit int) ([]float64, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT hr FROM (
			SELECT hr, time, id
			FROM observations
			WHERE patient_id = $1
			ORDER BY time DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY time, id
	`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent heart rates: %w", err)
	}
	defer rows.Close()

	values := make([]float64, 0, limit)
	for rows.Next() {
		var hr sql.NullFloat64
		if err := rows.Scan(&hr); err != nil {
			return nil, fmt.Errorf("failed to scan heart rate: %w", err)
		}
		values = append(values, floatOrNaN(hr))
	}
	return values, rows.Err()
}

func nullFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
