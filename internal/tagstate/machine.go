package tagstate

import (
	"context"

	"wisefido-threshold/internal/metrics"
	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// State 标签状态
type State string

const (
	Inactive State = "INACTIVE"
	Active   State = "ACTIVE"
)

func stateOf(active bool) State {
	if active {
		return Active
	}
	return Inactive
}

// Store 标签存储
type Store interface {
	GetTagState(ctx context.Context, patientID string, tagID m.TagID) (bool, error)
	SetTagState(ctx context.Context, patientID string, tagID m.TagID, active bool) error
	ActiveTags(ctx context.Context, patientID string) ([]m.TagID, error)
}

// Transition 一次切换的结果
type Transition struct {
	Changed bool  `json:"changed"`
	From    State `json:"from"`
	To      State `json:"to"`
}

// Machine 每个 (患者, 标签) 的 ACTIVE/INACTIVE 状态机
// 状态每次都从存储中重新读取，不在本地缓存；目标状态与当前状态相同则不做任何事
type Machine struct {
	store   Store
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewMachine 创建状态机
func NewMachine(store Store, mx *metrics.Metrics, logger *zap.Logger) *Machine {
	return &Machine{store: store, metrics: mx, logger: logger}
}

// Toggle 将标签切换到目标状态
func (s *Machine) Toggle(ctx context.Context, patientID string, tagID m.TagID, desired bool) (Transition, error) {
	if patientID == "" {
		return Transition{}, m.ErrPatientRequired
	}
	if tagID == "" {
		return Transition{}, m.ErrTagRequired
	}

	current, err := s.store.GetTagState(ctx, patientID, tagID)
	if err != nil {
		return Transition{}, err
	}

	t := Transition{From: stateOf(current), To: stateOf(desired)}
	if current == desired {
		s.metrics.TagTransition(string(tagID), false)
		s.logger.Debug("Tag already in desired state, ignoring",
			zap.String("patient_id", patientID),
			zap.String("tag_id", string(tagID)),
			zap.String("state", string(t.To)),
		)
		return t, nil
	}

	if err := s.store.SetTagState(ctx, patientID, tagID, desired); err != nil {
		return Transition{}, err
	}
	t.Changed = true
	s.metrics.TagTransition(string(tagID), true)

	s.logger.Info("Condition tag transitioned",
		zap.String("patient_id", patientID),
		zap.String("tag_id", string(tagID)),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
	)
	return t, nil
}

// State 当前状态
func (s *Machine) State(ctx context.Context, patientID string, tagID m.TagID) (State, error) {
	active, err := s.store.GetTagState(ctx, patientID, tagID)
	if err != nil {
		return Inactive, err
	}
	return stateOf(active), nil
}

// ActiveTags 患者当前激活的标签
func (s *Machine) ActiveTags(ctx context.Context, patientID string) ([]m.TagID, error) {
	return s.store.ActiveTags(ctx, patientID)
}
