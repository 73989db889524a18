package override

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"wisefido-threshold/internal/metrics"
	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// Store 覆盖存储
type Store interface {
	GetOverrides(ctx context.Context, patientID string) (m.Overrides, error)
	SaveOverrides(ctx context.Context, patientID string, overrides m.Overrides) error
	DeleteOverrides(ctx context.Context, patientID string) error
}

// Invalidator 生效值缓存失效钩子
type Invalidator interface {
	Invalidate(patientID string)
}

// AuditRecorder 覆盖审计记录（可选）
type AuditRecorder interface {
	RecordOverrideSet(ctx context.Context, patientID string, o m.Override) error
	RecordOverridesCleared(ctx context.Context, patientID string, reason string, cleared m.Overrides) error
}

// Layer 手动覆盖层：优先级最高，任何系统性变更都会整体清除
type Layer struct {
	store       Store
	invalidator Invalidator
	audit       AuditRecorder
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewLayer 创建覆盖层；audit 与 metrics 可为 nil
func NewLayer(store Store, invalidator Invalidator, audit AuditRecorder, mx *metrics.Metrics, logger *zap.Logger) *Layer {
	return &Layer{
		store:       store,
		invalidator: invalidator,
		audit:       audit,
		metrics:     mx,
		logger:      logger,
		now:         time.Now,
	}
}

// Apply 将覆盖范围原样拷贝到计算结果上，未覆盖的参数保持不变
// 覆盖本身为 unset 时跳过
func Apply(computed m.RangeMap, overrides m.Overrides) m.RangeMap {
	out := computed.Clone()
	for p, o := range overrides {
		if o.Range.IsUnset() {
			continue
		}
		out[p] = o.Range.Clone()
	}
	return out
}

// ApplyOverrides 读取患者覆盖并应用到计算结果
func (l *Layer) ApplyOverrides(ctx context.Context, patientID string, computed m.RangeMap) (m.RangeMap, m.Overrides, error) {
	overrides, err := l.store.GetOverrides(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	return Apply(computed, overrides), overrides, nil
}

// ListOverrides 列出患者的覆盖
func (l *Layer) ListOverrides(ctx context.Context, patientID string) (m.Overrides, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}
	return l.store.GetOverrides(ctx, patientID)
}

// Validate 校验覆盖参数与范围
func Validate(parameter m.ParameterID, rng m.ParameterRange) error {
	if !m.IsKnownParameter(parameter) {
		return fmt.Errorf("%w: %s", m.ErrUnknownParameter, parameter)
	}
	if rng.IsUnset() {
		return fmt.Errorf("%w: both min and max are required", m.ErrInvalidRange)
	}
	if math.IsNaN(*rng.Min) || math.IsNaN(*rng.Max) || math.IsInf(*rng.Min, 0) || math.IsInf(*rng.Max, 0) {
		return fmt.Errorf("%w: bounds must be finite", m.ErrInvalidRange)
	}
	if *rng.Min > *rng.Max {
		return fmt.Errorf("%w: min %v greater than max %v", m.ErrInvalidRange, *rng.Min, *rng.Max)
	}
	return nil
}

// SetOverride 设置单个参数的覆盖（同参数替换旧值）
// 最后一个可观察的副作用是使缓存失效
func (l *Layer) SetOverride(ctx context.Context, patientID string, parameter m.ParameterID, rng m.ParameterRange, source string) (m.Override, error) {
	if patientID == "" {
		return m.Override{}, m.ErrPatientRequired
	}
	if err := Validate(parameter, rng); err != nil {
		return m.Override{}, err
	}

	rng = rng.Clone()
	if rng.Unit == "" {
		rng.Unit = m.ParameterUnits[parameter]
	}

	overrides, err := l.store.GetOverrides(ctx, patientID)
	if err != nil {
		return m.Override{}, err
	}

	o := m.Override{
		Parameter: parameter,
		Range:     rng,
		Source:    source,
		SetAt:     l.now().UTC(),
	}
	overrides[parameter] = o

	if err := l.store.SaveOverrides(ctx, patientID, overrides); err != nil {
		return m.Override{}, err
	}

	if l.audit != nil {
		if err := l.audit.RecordOverrideSet(ctx, patientID, o); err != nil {
			l.logger.Warn("Failed to record override audit event",
				zap.String("patient_id", patientID),
				zap.String("parameter", string(parameter)),
				zap.Error(err),
			)
		}
	}

	l.logger.Info("Manual override set",
		zap.String("patient_id", patientID),
		zap.String("parameter", string(parameter)),
		zap.String("range", rng.String()),
		zap.String("source", source),
	)

	l.invalidator.Invalidate(patientID)
	return o, nil
}

// ClearOverrides 清除患者全部覆盖，返回被清除的数量
func (l *Layer) ClearOverrides(ctx context.Context, patientID string, reason string) (int, error) {
	if patientID == "" {
		return 0, m.ErrPatientRequired
	}

	existing, err := l.store.GetOverrides(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if err := l.store.DeleteOverrides(ctx, patientID); err != nil {
		return 0, err
	}

	if len(existing) > 0 {
		if l.audit != nil {
			if err := l.audit.RecordOverridesCleared(ctx, patientID, reason, existing); err != nil {
				l.logger.Warn("Failed to record override clear audit event",
					zap.String("patient_id", patientID),
					zap.Error(err),
				)
			}
		}
		l.metrics.OverridesClearedFor(reasonCategory(reason))
		l.logger.Info("Manual overrides cleared",
			zap.String("patient_id", patientID),
			zap.String("reason", reason),
			zap.Int("count", len(existing)),
		)
	}

	l.invalidator.Invalidate(patientID)
	return len(existing), nil
}

// reasonCategory "tag-toggle:sepsis" → "tag-toggle"
func reasonCategory(reason string) string {
	if reason == "" {
		return "unspecified"
	}
	if i := strings.IndexByte(reason, ':'); i > 0 {
		return reason[:i]
	}
	return reason
}
