package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vital-monitor/internal/models"

	"go.uber.org/zap"
)

// ResultsRepository 分析结果仓库
type ResultsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewResultsRepository 创建分析结果仓库
func NewResultsRepository(db *sql.DB, logger *zap.Logger) *ResultsRepository {
	return &ResultsRepository{
		db:     db,
		logger: logger,
	}
}

// SaveResults 在同一事务内写入一批读数及其报警，返回报警 event_id；任一步失败整体回滚
func (r *ResultsRepository) SaveResults(ctx context.Context, patientID string, ds models.Dataset, alerts []models.AlertRecord) ([]string, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if ds.Len() == 0 && len(alerts) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if ds.Len() > 0 {
		if err := copyObservations(ctx, tx, patientID, ds.Readings); err != nil {
			return nil, err
		}
	}

	var ids []string
	if len(alerts) > 0 {
		ids, err = insertAlerts(ctx, tx, patientID, alerts)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit results: %w", err)
	}

	r.logger.Info("Saved results",
		zap.String("patient_id", patientID),
		zap.Int("observations", ds.Len()),
		zap.Int("alerts", len(ids)),
	)
	return ids, nil
}
