package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wisefido-threshold/internal/effective"
	m "wisefido-threshold/internal/models"
	"wisefido-threshold/internal/override"
	"wisefido-threshold/internal/tagstate"

	"go.uber.org/zap"
)

// 覆盖清除原因
const (
	ReasonTagToggle     = "tag-toggle"
	ReasonContextChange = "context-change"
	ReasonManual        = "manual"
)

// ContextRepository 病历存储
type ContextRepository interface {
	GetContext(ctx context.Context, patientID string) (*m.PatientContext, error)
	SetContext(ctx context.Context, pc *m.PatientContext) error
}

// SnapshotPublisher 面向前端的快照（阶段 3）
type SnapshotPublisher interface {
	Publish(ctx context.Context, values *m.EffectiveValues) error
}

// Notifier 变更通知（阶段 4）
type Notifier interface {
	Notify(ctx context.Context, messageType string, payload interface{}) bool
}

// ToggleResult 标签切换结果
type ToggleResult struct {
	Changed         bool               `json:"changed"`
	From            tagstate.State     `json:"from"`
	To              tagstate.State     `json:"to"`
	EffectiveValues *m.EffectiveValues `json:"effective_values,omitempty"`
}

// ThresholdService 阈值服务：所有变更经同一把锁串行执行
// 阶段 1-3（持久化、清除覆盖/失效/重算、快照）在锁内，阶段 4（通知）在解锁后
type ThresholdService struct {
	mu        sync.Mutex
	contexts  ContextRepository
	tags      *tagstate.Machine
	overrides *override.Layer
	cache     *effective.Cache
	snapshots SnapshotPublisher
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewThresholdService 创建阈值服务；snapshots 可为 nil
func NewThresholdService(
	contexts ContextRepository,
	tags *tagstate.Machine,
	overrides *override.Layer,
	cache *effective.Cache,
	snapshots SnapshotPublisher,
	notifier Notifier,
	logger *zap.Logger,
) *ThresholdService {
	return &ThresholdService{
		contexts:  contexts,
		tags:      tags,
		overrides: overrides,
		cache:     cache,
		snapshots: snapshots,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// GetEffectiveValues 查询生效值
func (s *ThresholdService) GetEffectiveValues(ctx context.Context, patientID string, opts effective.Options) (*m.EffectiveValues, error) {
	return s.cache.Get(ctx, patientID, opts)
}

// ToggleConditionTag 切换病情标签
// 状态未变化时返回 Changed=false 与当前生效值，不清除覆盖、不通知
func (s *ThresholdService) ToggleConditionTag(ctx context.Context, patientID string, tagID m.TagID, desired bool) (*ToggleResult, error) {
	var tr tagstate.Transition
	values, changed, err := s.mutate(ctx, patientID, m.ChangeTagAdjustment, func() (string, bool, error) {
		var err error
		tr, err = s.tags.Toggle(ctx, patientID, tagID, desired)
		if err != nil {
			return "", false, err
		}
		return ReasonTagToggle + ":" + string(tagID), tr.Changed, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		// 状态未变，返回当前生效值（通常命中缓存）
		values, err = s.cache.Get(ctx, patientID, effective.Options{})
		if err != nil {
			return nil, err
		}
	}
	return &ToggleResult{Changed: changed, From: tr.From, To: tr.To, EffectiveValues: values}, nil
}

// SetManualOverride 设置手动覆盖
func (s *ThresholdService) SetManualOverride(ctx context.Context, patientID string, parameter m.ParameterID, rng m.ParameterRange, source string) error {
	_, _, err := s.mutate(ctx, patientID, m.ChangeManualOverride, func() (string, bool, error) {
		if _, err := s.overrides.SetOverride(ctx, patientID, parameter, rng, source); err != nil {
			return "", false, err
		}
		return "", true, nil
	})
	return err
}

// ClearManualOverrides 清除全部手动覆盖；没有覆盖时不通知
func (s *ThresholdService) ClearManualOverrides(ctx context.Context, patientID string, reason string) error {
	if reason == "" {
		reason = ReasonManual
	}
	_, _, err := s.mutate(ctx, patientID, m.ChangeManualOverride, func() (string, bool, error) {
		n, err := s.overrides.ClearOverrides(ctx, patientID, reason)
		if err != nil {
			return "", false, err
		}
		return "", n > 0, nil
	})
	return err
}

// SetProblemAndRisk 更新问题与风险等级；未变化时为空操作
func (s *ThresholdService) SetProblemAndRisk(ctx context.Context, patientID string, problemID *string, risk m.RiskLevel) error {
	if !risk.Valid() {
		return fmt.Errorf("%w: %q", m.ErrUnknownRiskLevel, risk)
	}
	if problemID != nil && *problemID == "" {
		problemID = nil
	}

	_, _, err := s.mutate(ctx, patientID, m.ChangeMatrix, func() (string, bool, error) {
		current, err := s.contexts.GetContext(ctx, patientID)
		if err != nil {
			return "", false, err
		}
		if current == nil {
			current = m.EmptyContext(patientID)
		}
		if sameProblem(current.ProblemID, problemID) && current.RiskLevel == risk {
			s.logger.Debug("Problem and risk unchanged, ignoring",
				zap.String("patient_id", patientID),
				zap.String("risk_level", string(risk)),
			)
			return "", false, nil
		}

		next := &m.PatientContext{
			PatientID: patientID,
			ProblemID: problemID,
			RiskLevel: risk,
			BedNumber: current.BedNumber,
			UpdatedAt: s.now().UTC(),
		}
		if err := s.contexts.SetContext(ctx, next); err != nil {
			return "", false, err
		}
		return ReasonContextChange, true, nil
	})
	return err
}

// ListOverrides 当前覆盖
func (s *ThresholdService) ListOverrides(ctx context.Context, patientID string) (m.Overrides, error) {
	return s.overrides.ListOverrides(ctx, patientID)
}

// ActiveTags 当前激活标签
func (s *ThresholdService) ActiveTags(ctx context.Context, patientID string) ([]m.TagID, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}
	return s.tags.ActiveTags(ctx, patientID)
}

// GetContext 当前上下文
func (s *ThresholdService) GetContext(ctx context.Context, patientID string) (*m.PatientContext, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}
	return s.contexts.GetContext(ctx, patientID)
}

// mutate 执行一次变更
// persist 完成阶段 1，返回需要清除覆盖的原因（空表示不清除）和是否产生了变化
func (s *ThresholdService) mutate(ctx context.Context, patientID string, changeType m.ChangeType, persist func() (clearReason string, changed bool, err error)) (*m.EffectiveValues, bool, error) {
	if patientID == "" {
		return nil, false, m.ErrPatientRequired
	}

	s.mu.Lock()
	values, changed, err := s.applyLocked(ctx, patientID, persist)
	s.mu.Unlock()
	if err != nil || !changed {
		return values, changed, err
	}

	msg := m.NewThresholdMessage(values, changeType, s.now())
	if !s.notifier.Notify(ctx, m.MessageThresholdsChanged, msg) {
		s.logger.Warn("Threshold notification not delivered",
			zap.String("patient_id", patientID),
			zap.String("change_type", string(changeType)),
		)
	}
	return values, true, nil
}

func (s *ThresholdService) applyLocked(ctx context.Context, patientID string, persist func() (string, bool, error)) (*m.EffectiveValues, bool, error) {
	// 阶段 1
	clearReason, changed, err := persist()
	if err != nil || !changed {
		return nil, false, err
	}

	// 阶段 2
	if clearReason != "" {
		if _, err := s.overrides.ClearOverrides(ctx, patientID, clearReason); err != nil {
			return nil, false, fmt.Errorf("failed to clear overrides: %w", err)
		}
	}
	s.cache.Invalidate(patientID)
	values, err := s.cache.Get(ctx, patientID, effective.Options{ForceRefresh: true})
	if err != nil {
		return nil, false, fmt.Errorf("failed to recompute effective values: %w", err)
	}

	// 阶段 3
	if s.snapshots != nil {
		if err := s.snapshots.Publish(ctx, values); err != nil {
			s.logger.Warn("Failed to publish threshold snapshot",
				zap.String("patient_id", patientID),
				zap.Error(err),
			)
		}
	}
	return values, true, nil
}

func sameProblem(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
