package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wisefido_threshold"

// Metrics 阈值服务指标
// 所有方法对 nil 接收者安全，便于在测试中省略
type Metrics struct {
	CacheHits               prometheus.Counter
	CacheMisses             prometheus.Counter
	CacheInvalidations      prometheus.Counter
	NotificationsSent       *prometheus.CounterVec
	NotificationsSuppressed *prometheus.CounterVec
	NotificationsFailed     *prometheus.CounterVec
	TagTransitions          *prometheus.CounterVec
	OverridesCleared        *prometheus.CounterVec
}

// New 创建并注册指标
func New(reg prometheus.Registerer) *Metrics {
	x := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Effective value cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Effective value cache misses (pipeline recomputations).",
		}),
		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "invalidations_total",
			Help: "Explicit effective value cache invalidations.",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifier", Name: "sent_total",
			Help: "Notifications forwarded to the channel.",
		}, []string{"type"}),
		NotificationsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifier", Name: "suppressed_total",
			Help: "Notifications suppressed as duplicates within the window.",
		}, []string{"type"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "notifier", Name: "failed_total",
			Help: "Notifications the channel failed to deliver.",
		}, []string{"type"}),
		TagTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "tags", Name: "transitions_total",
			Help: "Condition tag toggles by outcome.",
		}, []string{"tag", "outcome"}),
		OverridesCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "overrides", Name: "cleared_total",
			Help: "Override clear operations by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			x.CacheHits,
			x.CacheMisses,
			x.CacheInvalidations,
			x.NotificationsSent,
			x.NotificationsSuppressed,
			x.NotificationsFailed,
			x.TagTransitions,
			x.OverridesCleared,
		)
	}
	return x
}

func (x *Metrics) CacheHit() {
	if x != nil {
		x.CacheHits.Inc()
	}
}

func (x *Metrics) CacheMiss() {
	if x != nil {
		x.CacheMisses.Inc()
	}
}

func (x *Metrics) CacheInvalidated() {
	if x != nil {
		x.CacheInvalidations.Inc()
	}
}

func (x *Metrics) NotificationSent(msgType string) {
	if x != nil {
		x.NotificationsSent.WithLabelValues(msgType).Inc()
	}
}

func (x *Metrics) NotificationSuppressed(msgType string) {
	if x != nil {
		x.NotificationsSuppressed.WithLabelValues(msgType).Inc()
	}
}

func (x *Metrics) NotificationFailed(msgType string) {
	if x != nil {
		x.NotificationsFailed.WithLabelValues(msgType).Inc()
	}
}

// TagTransition outcome: "changed" 或 "noop"
func (x *Metrics) TagTransition(tag string, changed bool) {
	if x == nil {
		return
	}
	outcome := "noop"
	if changed {
		outcome = "changed"
	}
	x.TagTransitions.WithLabelValues(tag, outcome).Inc()
}

// OverridesClearedFor reason 只取类别（如 "tag-toggle"），避免标签基数过高
func (x *Metrics) OverridesClearedFor(reason string) {
	if x != nil {
		x.OverridesCleared.WithLabelValues(reason).Inc()
	}
}
