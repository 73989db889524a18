package models

import (
	"errors"
	"time"
)

var (
	ErrPatientRequired  = errors.New("patient_id is required")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrInvalidRange     = errors.New("invalid range")
	ErrUnknownRiskLevel = errors.New("unknown risk level")
	ErrTagRequired      = errors.New("tag_id is required")
)

// TagID 病情标签标识
type TagID string

// PatientContext 患者上下文（病历存储中的问题与风险等级）
type PatientContext struct {
	PatientID string    `json:"patient_id"`
	ProblemID *string   `json:"problem_id"`
	RiskLevel RiskLevel `json:"risk_level"`
	BedNumber *string   `json:"bed_number,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmptyContext 缺失或损坏数据的替代值
func EmptyContext(patientID string) *PatientContext {
	return &PatientContext{PatientID: patientID, RiskLevel: RiskLow}
}

// Override 手动阈值覆盖
type Override struct {
	Parameter ParameterID    `json:"parameter"`
	Range     ParameterRange `json:"range"`
	Source    string         `json:"source"`
	SetAt     time.Time      `json:"set_at"`
}

// Overrides 参数 → 覆盖（每个参数最多一个）
type Overrides map[ParameterID]Override

// Clone 深拷贝
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		v.Range = v.Range.Clone()
		out[k] = v
	}
	return out
}
