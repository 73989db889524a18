package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// PatientContextRepository 患者上下文（问题、风险等级、床位）
type PatientContextRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPatientContextRepository 创建上下文 Repository
func NewPatientContextRepository(db *sql.DB, logger *zap.Logger) *PatientContextRepository {
	return &PatientContextRepository{db: db, logger: logger}
}

// GetContext 读取上下文；不存在时返回空上下文（风险等级 low，无问题）
func (r *PatientContextRepository) GetContext(ctx context.Context, patientID string) (*m.PatientContext, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}

	query := `
		SELECT
			patient_id,
			problem_id,
			risk_level,
			bed_number,
			updated_at
		FROM patient_threshold_context
		WHERE patient_id = $1
	`

	var pc m.PatientContext
	var problemID, bedNumber sql.NullString
	var risk string

	err := r.db.QueryRowContext(ctx, query, patientID).Scan(
		&pc.PatientID,
		&problemID,
		&risk,
		&bedNumber,
		&pc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m.EmptyContext(patientID), nil
		}
		return nil, fmt.Errorf("failed to get patient context: %w", err)
	}

	if problemID.Valid && problemID.String != "" {
		pc.ProblemID = &problemID.String
	}
	if bedNumber.Valid && bedNumber.String != "" {
		pc.BedNumber = &bedNumber.String
	}
	pc.RiskLevel = m.RiskLevel(risk)
	if !pc.RiskLevel.Valid() {
		r.logger.Warn("Stored risk level is unknown",
			zap.String("patient_id", patientID),
			zap.String("risk_level", risk),
		)
	}

	return &pc, nil
}

// SetContext 写入上下文（upsert）；BedNumber 为 nil 时保留原床位
func (r *PatientContextRepository) SetContext(ctx context.Context, pc *m.PatientContext) error {
	if pc == nil || pc.PatientID == "" {
		return m.ErrPatientRequired
	}
	if pc.UpdatedAt.IsZero() {
		pc.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO patient_threshold_context (patient_id, problem_id, risk_level, bed_number, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id) DO UPDATE SET
			problem_id = EXCLUDED.problem_id,
			risk_level = EXCLUDED.risk_level,
			bed_number = COALESCE(EXCLUDED.bed_number, patient_threshold_context.bed_number),
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		pc.PatientID,
		nullString(pc.ProblemID),
		string(pc.RiskLevel),
		nullString(pc.BedNumber),
		pc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save patient context: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
