package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-threshold/internal/metrics"
	m "wisefido-threshold/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingChannel struct {
	sent []interface{}
	err  error
}

func (c *recordingChannel) Send(ctx context.Context, messageType string, payload interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, payload)
	return nil
}

func setupNotifier(t *testing.T) (*Notifier, *recordingChannel, *time.Time) {
	ch := &recordingChannel{}
	n, err := New(ch, DefaultWindow, 16, nil, zap.NewNop())
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	n.SetClock(func() time.Time { return now })
	return n, ch, &now
}

func message(circulatory string, hrMax float64) *m.ThresholdMessage {
	bed := "ICU-03"
	return &m.ThresholdMessage{
		PatientID:  "p-1",
		BedNumber:  &bed,
		ChangeType: m.ChangeTagAdjustment,
		RiskLevels: m.RiskLevels{Circulatory: circulatory, Respiratory: "mid", Temperature: "high"},
		Thresholds: m.RangeMap{m.ParamHR: m.NewRange(70, hrMax, "bpm")},
		DataSource: m.SourceTagAdjusted,
	}
}

func TestNotify_DedupWithinWindow(t *testing.T) {
	n, ch, now := setupNotifier(t)
	ctx := context.Background()

	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))

	*now = now.Add(20 * time.Millisecond)
	assert.False(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))

	*now = now.Add(60 * time.Millisecond)
	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))

	assert.Len(t, ch.sent, 2)
}

func TestNotify_WindowBoundary(t *testing.T) {
	n, ch, now := setupNotifier(t)
	ctx := context.Background()

	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))
	*now = now.Add(DefaultWindow)
	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))

	assert.Len(t, ch.sent, 2)
}

func TestNotify_ThresholdsDoNotAffectFingerprint(t *testing.T) {
	n, ch, _ := setupNotifier(t)
	ctx := context.Background()

	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))
	assert.False(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 150)))

	assert.Len(t, ch.sent, 1)
}

func TestNotify_DifferentRiskLevelsAreDistinct(t *testing.T) {
	n, ch, _ := setupNotifier(t)
	ctx := context.Background()

	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140)))
	assert.True(t, n.Notify(ctx, m.MessageThresholdsChanged, message("mid", 140)))
	assert.True(t, n.Notify(ctx, "other-type", message("mid", 140)))

	assert.Len(t, ch.sent, 3)
}

func TestNotify_MapPayload(t *testing.T) {
	n, ch, _ := setupNotifier(t)
	ctx := context.Background()

	assert.True(t, n.Notify(ctx, "bed-assigned", map[string]interface{}{"patientId": "p-1", "bedNumber": "A1", "x": 1}))
	assert.False(t, n.Notify(ctx, "bed-assigned", map[string]interface{}{"patientId": "p-1", "bedNumber": "A1", "x": 2}))
	assert.True(t, n.Notify(ctx, "bed-assigned", map[string]interface{}{"patientId": "p-2", "bedNumber": "A1"}))

	assert.Len(t, ch.sent, 2)
}

func TestNotify_ChannelFailure(t *testing.T) {
	ch := &recordingChannel{err: errors.New("broker unavailable")}
	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)
	n, err := New(ch, DefaultWindow, 16, mx, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, n.Notify(context.Background(), m.MessageThresholdsChanged, message("high", 140)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mx.NotificationsFailed.WithLabelValues(m.MessageThresholdsChanged)))
}

func TestNotify_PrunesExpiredFingerprints(t *testing.T) {
	n, _, now := setupNotifier(t)
	ctx := context.Background()

	n.Notify(ctx, m.MessageThresholdsChanged, message("high", 140))
	n.Notify(ctx, m.MessageThresholdsChanged, message("mid", 140))
	assert.Equal(t, 2, n.Pending())

	*now = now.Add(100 * time.Millisecond)
	n.Notify(ctx, m.MessageThresholdsChanged, message("low", 140))

	assert.Equal(t, 1, n.Pending())
}

func TestNotify_CapacityBounded(t *testing.T) {
	ch := &recordingChannel{}
	n, err := New(ch, time.Hour, 2, nil, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		n.Notify(ctx, "ping", id)
	}

	assert.Equal(t, 2, n.Pending())
}
