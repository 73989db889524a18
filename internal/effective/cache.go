package effective

import (
	"context"
	"sync"
	"time"

	"wisefido-threshold/internal/metrics"
	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// DefaultTTL 生效值缓存有效期
const DefaultTTL = 2000 * time.Millisecond

// Computer 计算生效值
type Computer interface {
	Compute(ctx context.Context, patientID string, now time.Time) (*m.EffectiveValues, error)
}

// Options 查询选项
type Options struct {
	ForceRefresh bool // 跳过缓存，强制重新计算
}

// Cache 按患者缓存管线结果
// 命中：条目存在、未强制刷新且 now-computedAt < TTL，返回同一指针
// 每个患者维护一个代数，Invalidate 与强制刷新都会推进代数；
// 计算期间代数变化的结果只返回给调用方，不写回缓存
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*m.CacheEntry
	gens     map[string]uint64
	pipeline Computer
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCache 创建缓存；ttl <= 0 时使用 DefaultTTL
func NewCache(pipeline Computer, ttl time.Duration, mx *metrics.Metrics, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:  make(map[string]*m.CacheEntry),
		gens:     make(map[string]uint64),
		pipeline: pipeline,
		ttl:      ttl,
		now:      time.Now,
		metrics:  mx,
		logger:   logger,
	}
}

// SetClock 替换时钟（测试用）
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// TTL 缓存有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get 返回患者的生效值
func (c *Cache) Get(ctx context.Context, patientID string, opts Options) (*m.EffectiveValues, error) {
	if patientID == "" {
		return nil, m.ErrPatientRequired
	}

	c.mu.Lock()
	now := c.now()
	if !opts.ForceRefresh {
		if e, ok := c.entries[patientID]; ok && now.Sub(e.ComputedAt) < c.ttl {
			c.mu.Unlock()
			c.metrics.CacheHit()
			return e.Values, nil
		}
	} else {
		c.gens[patientID]++
	}
	gen := c.gens[patientID]
	c.mu.Unlock()

	c.metrics.CacheMiss()
	values, err := c.pipeline.Compute(ctx, patientID, now)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[patientID] == gen {
		c.entries[patientID] = &m.CacheEntry{Values: values, ComputedAt: now}
		c.mu.Unlock()
		return values, nil
	}
	c.mu.Unlock()

	c.logger.Debug("Discarding effective values computed before invalidation",
		zap.String("patient_id", patientID),
	)
	return values, nil
}

// Invalidate 丢弃患者的缓存条目
func (c *Cache) Invalidate(patientID string) {
	c.mu.Lock()
	_, ok := c.entries[patientID]
	delete(c.entries, patientID)
	c.gens[patientID]++
	c.mu.Unlock()

	c.metrics.CacheInvalidated()
	if ok {
		c.logger.Debug("Effective value cache invalidated", zap.String("patient_id", patientID))
	}
}

// Len 当前缓存条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
