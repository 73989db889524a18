package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "wisefido-threshold/common/config"
)

// 通知通道
const (
	ChannelMQTT    = "mqtt"
	ChannelStream  = "stream"
	ChannelWebhook = "webhook"
)

// Config wisefido-threshold 配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	Database  commoncfg.DatabaseConfig
	Redis     commoncfg.RedisConfig
	MQTT      commoncfg.MQTTConfig

	Threshold struct {
		CacheTTL          time.Duration // 生效值缓存有效期
		DedupWindow       time.Duration // 通知去重窗口
		DedupCapacity     int           // 去重指纹表容量
		SnapshotTTL       time.Duration // 前端快照 TTL
		TagKeyPrefix      string
		OverrideKeyPrefix string
		SnapshotPrefix    string
		SnapshotSuffix    string
	}

	Notify struct {
		Channels        []string // mqtt / stream / webhook 的子集
		MQTTTopicPrefix string
		Stream          string
		StreamMaxLen    int64
		WebhookURL      string
		WebhookTimeout  time.Duration
		WebhookRetries  int
	}

	CommandTopic string // 入站命令主题，空表示不订阅

	Log struct {
		Level  string
		Format string
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "owlrd")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-threshold")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))
	cfg.MQTT.ConnectTimeout = time.Duration(parseInt(getEnv("MQTT_CONNECT_TIMEOUT_SEC", "10"), 10)) * time.Second

	cfg.Threshold.CacheTTL = time.Duration(parseInt(getEnv("THRESHOLD_CACHE_TTL_MS", "2000"), 2000)) * time.Millisecond
	cfg.Threshold.DedupWindow = time.Duration(parseInt(getEnv("THRESHOLD_DEDUP_WINDOW_MS", "50"), 50)) * time.Millisecond
	cfg.Threshold.DedupCapacity = parseInt(getEnv("THRESHOLD_DEDUP_CAPACITY", "1024"), 1024)
	cfg.Threshold.SnapshotTTL = time.Duration(parseInt(getEnv("THRESHOLD_SNAPSHOT_TTL_SEC", "30"), 30)) * time.Second
	cfg.Threshold.TagKeyPrefix = getEnv("THRESHOLD_TAG_KEY_PREFIX", "threshold:tags:")
	cfg.Threshold.OverrideKeyPrefix = getEnv("THRESHOLD_OVERRIDE_KEY_PREFIX", "threshold:overrides:")
	cfg.Threshold.SnapshotPrefix = getEnv("THRESHOLD_SNAPSHOT_PREFIX", "vital-focus:patient:")
	cfg.Threshold.SnapshotSuffix = getEnv("THRESHOLD_SNAPSHOT_SUFFIX", ":thresholds")

	cfg.Notify.Channels = parseList(getEnv("NOTIFY_CHANNELS", "mqtt,stream"))
	cfg.Notify.MQTTTopicPrefix = getEnv("NOTIFY_MQTT_TOPIC_PREFIX", "wisefido/thresholds")
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "threshold:events:stream")
	cfg.Notify.StreamMaxLen = int64(parseInt(getEnv("NOTIFY_STREAM_MAXLEN", "10000"), 10000))
	cfg.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", "")
	cfg.Notify.WebhookTimeout = time.Duration(parseInt(getEnv("NOTIFY_WEBHOOK_TIMEOUT_MS", "3000"), 3000)) * time.Millisecond
	cfg.Notify.WebhookRetries = parseInt(getEnv("NOTIFY_WEBHOOK_RETRIES", "2"), 2)

	cfg.CommandTopic = getEnv("COMMAND_TOPIC", "wisefido/threshold/commands")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	return cfg
}

// ChannelEnabled 判断通知通道是否启用
func (c *Config) ChannelEnabled(name string) bool {
	for _, ch := range c.Notify.Channels {
		if ch == name {
			return true
		}
	}
	return false
}

// NeedsMQTT MQTT 通知或命令订阅任一启用时需要 MQTT 连接
func (c *Config) NeedsMQTT() bool {
	return c.ChannelEnabled(ChannelMQTT) || c.CommandTopic != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
