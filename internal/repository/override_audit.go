package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	m "wisefido-threshold/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 审计动作
const (
	AuditActionSet   = "set"
	AuditActionClear = "clear"
)

// OverrideEvent 覆盖审计事件
type OverrideEvent struct {
	EventID       string         `json:"event_id"`
	PatientID     string         `json:"patient_id"`
	Action        string         `json:"action"`
	Parameter     *m.ParameterID `json:"parameter,omitempty"`
	Min           *float64       `json:"min,omitempty"`
	Max           *float64       `json:"max,omitempty"`
	Unit          *string        `json:"unit,omitempty"`
	Source        *string        `json:"source,omitempty"`
	Reason        *string        `json:"reason,omitempty"`
	OverrideCount int            `json:"override_count"`
	CreatedAt     time.Time      `json:"created_at"`
}

// OverrideAuditRepository 覆盖审计记录
type OverrideAuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewOverrideAuditRepository 创建审计 Repository
func NewOverrideAuditRepository(db *sql.DB, logger *zap.Logger) *OverrideAuditRepository {
	return &OverrideAuditRepository{db: db, logger: logger, now: time.Now}
}

const insertOverrideEvent = `
	INSERT INTO threshold_override_events (
		event_id, patient_id, action, parameter, min_value, max_value,
		unit, source, reason, override_count, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

// RecordOverrideSet 记录一次覆盖设置
func (r *OverrideAuditRepository) RecordOverrideSet(ctx context.Context, patientID string, o m.Override) error {
	parameter := string(o.Parameter)
	_, err := r.db.ExecContext(ctx, insertOverrideEvent,
		uuid.New().String(),
		patientID,
		AuditActionSet,
		nullString(&parameter),
		nullFloat(o.Range.Min),
		nullFloat(o.Range.Max),
		nullString(&o.Range.Unit),
		nullString(&o.Source),
		sql.NullString{},
		1,
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record override set: %w", err)
	}
	return nil
}

// RecordOverridesCleared 记录一次整体清除
func (r *OverrideAuditRepository) RecordOverridesCleared(ctx context.Context, patientID string, reason string, cleared m.Overrides) error {
	_, err := r.db.ExecContext(ctx, insertOverrideEvent,
		uuid.New().String(),
		patientID,
		AuditActionClear,
		sql.NullString{},
		sql.NullFloat64{},
		sql.NullFloat64{},
		sql.NullString{},
		sql.NullString{},
		nullString(&reason),
		len(cleared),
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record override clear: %w", err)
	}
	return nil
}

// ListEvents 按时间倒序列出患者的审计事件
func (r *OverrideAuditRepository) ListEvents(ctx context.Context, patientID string, limit int) ([]OverrideEvent, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT
			event_id::text,
			patient_id,
			action,
			parameter,
			min_value,
			max_value,
			unit,
			source,
			reason,
			override_count,
			created_at
		FROM threshold_override_events
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list override events: %w", err)
	}
	defer rows.Close()

	events := []OverrideEvent{}
	for rows.Next() {
		var e OverrideEvent
		var parameter, unit, source, reason sql.NullString
		var minValue, maxValue sql.NullFloat64
		if err := rows.Scan(
			&e.EventID,
			&e.PatientID,
			&e.Action,
			&parameter,
			&minValue,
			&maxValue,
			&unit,
			&source,
			&reason,
			&e.OverrideCount,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan override event: %w", err)
		}
		if parameter.Valid {
			p := m.ParameterID(parameter.String)
			e.Parameter = &p
		}
		if minValue.Valid {
			e.Min = m.Float(minValue.Float64)
		}
		if maxValue.Valid {
			e.Max = m.Float(maxValue.Float64)
		}
		e.Unit = stringPtr(unit)
		e.Source = stringPtr(source)
		e.Reason = stringPtr(reason)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate override events: %w", err)
	}
	return events, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
