package effective

import (
	"context"
	"fmt"
	"time"

	"wisefido-threshold/internal/matrix"
	m "wisefido-threshold/internal/models"
	"wisefido-threshold/internal/override"
	"wisefido-threshold/internal/tagdelta"

	"go.uber.org/zap"
)

// ContextStore 病历存储（问题与风险等级）
type ContextStore interface {
	GetContext(ctx context.Context, patientID string) (*m.PatientContext, error)
}

// TagStore 标签存储
type TagStore interface {
	ActiveTags(ctx context.Context, patientID string) ([]m.TagID, error)
}

// OverrideStore 覆盖存储（只读）
type OverrideStore interface {
	GetOverrides(ctx context.Context, patientID string) (m.Overrides, error)
}

// Pipeline 生效值计算管线：矩阵 → 标签增量 → 手动覆盖
type Pipeline struct {
	contexts  ContextStore
	tags      TagStore
	overrides OverrideStore
	matrix    *matrix.Matrix
	engine    *tagdelta.Engine
	logger    *zap.Logger
}

// NewPipeline 创建管线
func NewPipeline(contexts ContextStore, tags TagStore, overrides OverrideStore, mx *matrix.Matrix, engine *tagdelta.Engine, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		contexts:  contexts,
		tags:      tags,
		overrides: overrides,
		matrix:    mx,
		engine:    engine,
		logger:    logger,
	}
}

// Compute 从存储中重新读取全部输入并计算生效值
func (p *Pipeline) Compute(ctx context.Context, patientID string, now time.Time) (*m.EffectiveValues, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}

	pc, err := p.contexts.GetContext(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient context: %w", err)
	}
	if pc == nil {
		pc = m.EmptyContext(patientID)
	}

	tags, err := p.tags.ActiveTags(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active tags: %w", err)
	}
	tags = p.engine.Order(tags)

	overrides, err := p.overrides.GetOverrides(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load overrides: %w", err)
	}

	base := p.matrix.Resolve(pc.ProblemID, pc.RiskLevel)
	adjusted := p.engine.Apply(tags, base.Ranges, base.OrganLevels, pc.RiskLevel)
	ranges := override.Apply(adjusted.Ranges, overrides)

	values := &m.EffectiveValues{
		PatientID:       patientID,
		BedNumber:       pc.BedNumber,
		ParameterRanges: ranges,
		OrganLevels:     adjusted.OrganLevels,
		ActiveTags:      tags,
		Overrides:       overrides.Clone(),
		Adjustments:     adjusted.Applied,
		BaseContext: m.BaseContext{
			ProblemID:         pc.ProblemID,
			RiskLevel:         pc.RiskLevel,
			MatrixRanges:      base.Ranges,
			MatrixOrganLevels: base.OrganLevels,
		},
		DataSource: dataSource(overrides, adjusted),
		ComputedAt: now,
	}

	p.logger.Debug("Effective values computed",
		zap.String("patient_id", patientID),
		zap.String("data_source", string(values.DataSource)),
		zap.Int("active_tags", len(tags)),
		zap.Int("overrides", len(overrides)),
	)
	return values, nil
}

func dataSource(overrides m.Overrides, adjusted tagdelta.Result) m.DataSource {
	for _, o := range overrides {
		if !o.Range.IsUnset() {
			return m.SourceManualOverride
		}
	}
	if adjusted.AppliedAny() {
		return m.SourceTagAdjusted
	}
	return m.SourceMatrix
}
