package channel

import (
	"context"

	rediscommon "wisefido-threshold/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamChannel 写入 Redis Stream（XADD）
type StreamChannel struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamChannel 创建 Stream 通道；maxLen <= 0 表示不裁剪
func NewStreamChannel(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamChannel {
	return &StreamChannel{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// Send 写入一条消息
func (c *StreamChannel) Send(ctx context.Context, messageType string, payload interface{}) error {
	id, err := rediscommon.PublishJSONToStream(ctx, c.client, c.stream, messageType, payload, c.maxLen)
	if err != nil {
		return err
	}
	c.logger.Debug("Published notification to stream",
		zap.String("stream", c.stream),
		zap.String("message_id", id),
		zap.String("type", messageType),
	)
	return nil
}
