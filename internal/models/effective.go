package models

import "time"

// DataSource 生效值来源
type DataSource string

const (
	SourceMatrix         DataSource = "matrix"
	SourceTagAdjusted    DataSource = "tag-adjusted"
	SourceManualOverride DataSource = "manual-override"
)

// ChangeType 变更分类
type ChangeType string

const (
	ChangeMatrix         ChangeType = "matrix-change"
	ChangeTagAdjustment  ChangeType = "tag-adjustment"
	ChangeManualOverride ChangeType = "manual-override"
)

// Adjustment 一次标签增量调整记录
type Adjustment struct {
	Tag       TagID       `json:"tag"`
	Parameter ParameterID `json:"parameter,omitempty"`
	Organ     OrganID     `json:"organ,omitempty"`
	MinDelta  float64     `json:"min_delta,omitempty"`
	MaxDelta  float64     `json:"max_delta,omitempty"`
	Step      int         `json:"step,omitempty"`
	Skipped   bool        `json:"skipped,omitempty"` // 基础范围 unset，未调整
}

// BaseContext 计算所依据的矩阵基础数据
type BaseContext struct {
	ProblemID         *string     `json:"problem_id"`
	RiskLevel         RiskLevel   `json:"risk_level"`
	MatrixRanges      RangeMap    `json:"matrix_ranges"`
	MatrixOrganLevels OrganLevels `json:"matrix_organ_levels"`
}

// EffectiveValues 管线输出（可由上下文、标签、覆盖完全复现）
type EffectiveValues struct {
	PatientID       string       `json:"patient_id"`
	BedNumber       *string      `json:"bed_number,omitempty"`
	ParameterRanges RangeMap     `json:"parameter_ranges"`
	OrganLevels     OrganLevels  `json:"organ_levels"`
	ActiveTags      []TagID      `json:"active_tags"`
	Overrides       Overrides    `json:"overrides"`
	Adjustments     []Adjustment `json:"adjustments"`
	BaseContext     BaseContext  `json:"base_context"`
	DataSource      DataSource   `json:"data_source"`
	ComputedAt      time.Time    `json:"computed_at"`
}

// CacheEntry 缓存条目
type CacheEntry struct {
	Values     *EffectiveValues
	ComputedAt time.Time
}
