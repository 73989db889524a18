package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// SnapshotStore 生效阈值快照（供前端/卡片聚合读取）
// 键：{prefix}{patient_id}{suffix}，如 "vital-focus:patient:p-1:thresholds"
type SnapshotStore struct {
	kv     KVStore
	prefix string
	suffix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotStore 创建快照存储
func NewSnapshotStore(kv KVStore, prefix, suffix string, ttl time.Duration, logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{kv: kv, prefix: prefix, suffix: suffix, ttl: ttl, logger: logger}
}

// Key 快照键
func (s *SnapshotStore) Key(patientID string) string {
	return s.prefix + patientID + s.suffix
}

// Publish 写入快照（带 TTL）
func (s *SnapshotStore) Publish(ctx context.Context, values *m.EffectiveValues) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	key := s.Key(values.PatientID)
	if err := s.kv.Set(ctx, key, string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	s.logger.Debug("Published threshold snapshot",
		zap.String("patient_id", values.PatientID),
		zap.String("key", key),
		zap.String("data_source", string(values.DataSource)),
	)
	return nil
}
