package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// TagStore 病情标签状态存储
// 每个患者一个键：{prefix}{patient_id}，值为 {"tag": true/false} 的 JSON
type TagStore struct {
	kv     KVStore
	prefix string
	logger *zap.Logger
}

// NewTagStore 创建标签存储
func NewTagStore(kv KVStore, prefix string, logger *zap.Logger) *TagStore {
	return &TagStore{kv: kv, prefix: prefix, logger: logger}
}

func (s *TagStore) key(patientID string) string {
	return s.prefix + patientID
}

// load 读取标签表；缺失或损坏的数据视为空表
func (s *TagStore) load(ctx context.Context, patientID string) (map[m.TagID]bool, error) {
	raw, err := s.kv.Get(ctx, s.key(patientID))
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return map[m.TagID]bool{}, nil
		}
		return nil, fmt.Errorf("failed to get tag state: %w", err)
	}

	states := map[m.TagID]bool{}
	if err := json.Unmarshal([]byte(raw), &states); err != nil {
		s.logger.Warn("Malformed tag state, treating as empty",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return map[m.TagID]bool{}, nil
	}
	return states, nil
}

// GetTagState 获取单个标签状态（默认 INACTIVE）
func (s *TagStore) GetTagState(ctx context.Context, patientID string, tagID m.TagID) (bool, error) {
	states, err := s.load(ctx, patientID)
	if err != nil {
		return false, err
	}
	return states[tagID], nil
}

// SetTagState 持久化单个标签状态
func (s *TagStore) SetTagState(ctx context.Context, patientID string, tagID m.TagID, active bool) error {
	states, err := s.load(ctx, patientID)
	if err != nil {
		return err
	}
	if active {
		states[tagID] = true
	} else {
		delete(states, tagID)
	}

	data, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("failed to marshal tag state: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(patientID), string(data), 0); err != nil {
		return fmt.Errorf("failed to set tag state: %w", err)
	}
	return nil
}

// ActiveTags 当前激活的标签（字典序，调用方负责规范排序）
func (s *TagStore) ActiveTags(ctx context.Context, patientID string) ([]m.TagID, error) {
	states, err := s.load(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]m.TagID, 0, len(states))
	for tag, active := range states {
		if active {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
