package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 2000*time.Millisecond, cfg.Threshold.CacheTTL)
	assert.Equal(t, 50*time.Millisecond, cfg.Threshold.DedupWindow)
	assert.Equal(t, 1024, cfg.Threshold.DedupCapacity)
	assert.Equal(t, 30*time.Second, cfg.Threshold.SnapshotTTL)
	assert.Equal(t, []string{ChannelMQTT, ChannelStream}, cfg.Notify.Channels)
	assert.Equal(t, "wisefido-threshold", cfg.MQTT.ClientID)
	assert.True(t, cfg.NeedsMQTT())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("THRESHOLD_CACHE_TTL_MS", "500")
	t.Setenv("THRESHOLD_DEDUP_WINDOW_MS", "100")
	t.Setenv("NOTIFY_CHANNELS", " Stream , webhook,")
	t.Setenv("NOTIFY_WEBHOOK_URL", "http://alarm.local/hook")
	t.Setenv("COMMAND_TOPIC", "")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := Load()

	assert.Equal(t, 500*time.Millisecond, cfg.Threshold.CacheTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Threshold.DedupWindow)
	assert.Equal(t, []string{ChannelStream, ChannelWebhook}, cfg.Notify.Channels)
	assert.True(t, cfg.ChannelEnabled(ChannelWebhook))
	assert.False(t, cfg.ChannelEnabled(ChannelMQTT))
	assert.Equal(t, 5432, cfg.Database.Port)
	// COMMAND_TOPIC 为空时回落到默认值
	assert.Equal(t, "wisefido/threshold/commands", cfg.CommandTopic)
}
