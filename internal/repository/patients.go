package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vital-monitor/internal/models"

	"go.uber.org/zap"
)

// PatientsRepository 患者仓库
type PatientsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientsRepository 创建患者仓库
func NewPatientsRepository(db *sql.DB, logger *zap.Logger) *PatientsRepository {
	return &PatientsRepository{
		db:     db,
		logger: logger,
	}
}

// ListPatients 按 id 排序列出患者
func (r *PatientsRepository) ListPatients(ctx context.Context) ([]models.Patient, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM patients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	patients := make([]models.Patient, 0)
	for rows.Next() {
		var p models.Patient
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// EnsurePatient 患者不存在时创建（已存在时不修改名称）
func (r *PatientsRepository) EnsurePatient(ctx context.Context, id, name string) error {
	if id == "" {
		return fmt.Errorf("patient_id is required")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO patients (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure patient: %w", err)
	}
	return nil
}
