package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// OverrideStore 手动覆盖存储（持久化，不设置 TTL）
type OverrideStore struct {
	kv     KVStore
	prefix string
	logger *zap.Logger
}

// NewOverrideStore 创建覆盖存储
func NewOverrideStore(kv KVStore, prefix string, logger *zap.Logger) *OverrideStore {
	return &OverrideStore{kv: kv, prefix: prefix, logger: logger}
}

func (s *OverrideStore) key(patientID string) string {
	return s.prefix + patientID
}

// GetOverrides 读取覆盖；缺失或损坏的数据视为无覆盖，未知参数的条目被丢弃
func (s *OverrideStore) GetOverrides(ctx context.Context, patientID string) (m.Overrides, error) {
	raw, err := s.kv.Get(ctx, s.key(patientID))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return m.Overrides{}, nil
		}
		return nil, fmt.Errorf("failed to get overrides: %w", err)
	}

	var stored m.Overrides
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("Malformed overrides, treating as absent",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return m.Overrides{}, nil
	}

	out := make(m.Overrides, len(stored))
	for p, o := range stored {
		if !m.IsKnownParameter(p) {
			s.logger.Warn("Dropping override for unknown parameter",
				zap.String("patient_id", patientID),
				zap.String("parameter", string(p)),
			)
			continue
		}
		o.Parameter = p
		out[p] = o
	}
	return out, nil
}

// SaveOverrides 覆盖写入整个覆盖表
func (s *OverrideStore) SaveOverrides(ctx context.Context, patientID string, overrides m.Overrides) error {
	if len(overrides) == 0 {
		return s.DeleteOverrides(ctx, patientID)
	}
	data, err := json.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(patientID), string(data), 0); err != nil {
		return fmt.Errorf("failed to save overrides: %w", err)
	}
	return nil
}

// DeleteOverrides 删除患者的全部覆盖
func (s *OverrideStore) DeleteOverrides(ctx context.Context, patientID string) error {
	if err := s.kv.Del(ctx, s.key(patientID)); err != nil {
		return fmt.Errorf("failed to delete overrides: %w", err)
	}
	return nil
}
