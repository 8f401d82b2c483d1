package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

// schemaStatements 表结构（可重复执行）
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id   TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS thresholds (
		patient_id TEXT PRIMARY KEY,
		hr_high    DOUBLE PRECISION NOT NULL,
		spo2_low   DOUBLE PRECISION NOT NULL,
		temp_high  DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS observations (
		id         BIGSERIAL PRIMARY KEY,
		patient_id TEXT NOT NULL,
		time       TIMESTAMPTZ NOT NULL,
		hr         DOUBLE PRECISION,
		spo2       DOUBLE PRECISION,
		temp       DOUBLE PRECISION,
		status     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_patient_time ON observations (patient_id, time)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		event_id        UUID PRIMARY KEY,
		patient_id      TEXT NOT NULL,
		time            TIMESTAMPTZ NOT NULL,
		kind            TEXT NOT NULL,
		value           DOUBLE PRECISION NOT NULL,
		reading_status  TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'new',
		acknowledged_by TEXT,
		ack_time        TIMESTAMPTZ,
		note            TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_patient_time ON alerts (patient_id, time DESC)`,
}

// InitSchema 创建表和索引
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}
