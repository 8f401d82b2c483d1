package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vital-monitor/internal/models"

	"go.uber.org/zap"
)

// ThresholdsRepository 患者阈值仓库
type ThresholdsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewThresholdsRepository 创建阈值仓库
func NewThresholdsRepository(db *sql.DB, logger *zap.Logger) *ThresholdsRepository {
	return &ThresholdsRepository{
		db:     db,
		logger: logger,
	}
}

// GetThresholds 获取患者阈值；patientID 为空或未配置时返回默认值
func (r *ThresholdsRepository) GetThresholds(ctx context.Context, patientID string) (models.ThresholdConfig, error) {
	if patientID == "" {
		return models.DefaultThresholds(), nil
	}

	var cfg models.ThresholdConfig
	err := r.db.QueryRowContext(ctx,
		`SELECT hr_high, spo2_low, temp_high FROM thresholds WHERE patient_id = $1`,
		patientID,
	).Scan(&cfg.HRHigh, &cfg.SpO2Low, &cfg.TempHigh)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("No thresholds recorded, using defaults", zap.String("patient_id", patientID))
			return models.DefaultThresholds(), nil
		}
		return models.ThresholdConfig{}, fmt.Errorf("failed to get thresholds: %w", err)
	}
	return cfg, nil
}

// UpsertThresholds 写入患者阈值
func (r *ThresholdsRepository) UpsertThresholds(ctx context.Context, patientID string, cfg models.ThresholdConfig) error {
	if patientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO thresholds (patient_id, hr_high, spo2_low, temp_high, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (patient_id) DO UPDATE SET
			hr_high = EXCLUDED.hr_high,
			spo2_low = EXCLUDED.spo2_low,
			temp_high = EXCLUDED.temp_high,
			updated_at = now()
	`, patientID, cfg.HRHigh, cfg.SpO2Low, cfg.TempHigh)
	if err != nil {
		return fmt.Errorf("failed to upsert thresholds: %w", err)
	}
	return nil
}
