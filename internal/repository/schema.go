package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema 阈值服务使用的表
const schema = `
CREATE TABLE IF NOT EXISTS patient_threshold_context (
	patient_id  TEXT PRIMARY KEY,
	problem_id  TEXT,
	risk_level  TEXT NOT NULL DEFAULT 'low',
	bed_number  TEXT,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS threshold_override_events (
	event_id       UUID PRIMARY KEY,
	patient_id     TEXT NOT NULL,
	action         TEXT NOT NULL,
	parameter      TEXT,
	min_value      DOUBLE PRECISION,
	max_value      DOUBLE PRECISION,
	unit           TEXT,
	source         TEXT,
	reason         TEXT,
	override_count INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_threshold_override_events_patient
	ON threshold_override_events (patient_id, created_at DESC);
`

// EnsureSchema 创建缺失的表
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
