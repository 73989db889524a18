package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"wisefido-threshold/internal/metrics"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	// DefaultWindow 去重窗口
	DefaultWindow = 50 * time.Millisecond
	// DefaultCapacity 指纹表容量上限
	DefaultCapacity = 1024
)

// Channel 出站通知通道
type Channel interface {
	Send(ctx context.Context, messageType string, payload interface{}) error
}

// Fingerprinter 由消息自身提供去重字段
type Fingerprinter interface {
	FingerprintFields() []string
}

// Notifier 指纹去重后转发到通道
// 同一指纹在窗口内只投递一次
type Notifier struct {
	mu      sync.Mutex
	seen    *lru.Cache[uint64, time.Time]
	channel Channel
	window  time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New 创建通知器；window/capacity <= 0 时使用默认值
func New(channel Channel, window time.Duration, capacity int, mx *metrics.Metrics, logger *zap.Logger) (*Notifier, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	seen, err := lru.New[uint64, time.Time](capacity)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		seen:    seen,
		channel: channel,
		window:  window,
		now:     time.Now,
		metrics: mx,
		logger:  logger,
	}, nil
}

// SetClock 替换时钟（测试用）
func (n *Notifier) SetClock(now func() time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
}

// Notify 去重并发送；重复或发送失败返回 false
func (n *Notifier) Notify(ctx context.Context, messageType string, payload interface{}) bool {
	fp := Fingerprint(messageType, payload)

	n.mu.Lock()
	now := n.now()
	if last, ok := n.seen.Peek(fp); ok && now.Sub(last) < n.window {
		n.mu.Unlock()
		n.metrics.NotificationSuppressed(messageType)
		n.logger.Debug("Duplicate notification suppressed",
			zap.String("type", messageType),
			zap.Uint64("fingerprint", fp),
		)
		return false
	}
	n.seen.Add(fp, now)
	n.prune(now)
	n.mu.Unlock()

	if err := n.channel.Send(ctx, messageType, payload); err != nil {
		n.metrics.NotificationFailed(messageType)
		n.logger.Warn("Failed to send notification",
			zap.String("type", messageType),
			zap.Error(err),
		)
		return false
	}

	n.metrics.NotificationSent(messageType)
	return true
}

// prune 删除窗口外的指纹；Keys 按从旧到新排列
func (n *Notifier) prune(now time.Time) {
	for _, k := range n.seen.Keys() {
		at, ok := n.seen.Peek(k)
		if !ok {
			continue
		}
		if now.Sub(at) < n.window {
			return
		}
		n.seen.Remove(k)
	}
}

// Pending 窗口内的指纹数
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seen.Len()
}

// Fingerprint 消息类型 + 识别字段的哈希（不含阈值与时间戳）
func Fingerprint(messageType string, payload interface{}) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(messageType)
	for _, f := range identifyingFields(payload) {
		_, _ = d.WriteString("\x1f")
		_, _ = d.WriteString(f)
	}
	return d.Sum64()
}

func identifyingFields(payload interface{}) []string {
	switch p := payload.(type) {
	case nil:
		return nil
	case Fingerprinter:
		return p.FingerprintFields()
	case map[string]interface{}:
		return []string{stringField(p, "patientId"), stringField(p, "bedNumber")}
	case string:
		return []string{p}
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil
		}
		return []string{string(data)}
	}
}

func stringField(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
