package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTChannel 发布到 {prefix}/{patientId}
type MQTTChannel struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTChannel 创建 MQTT 通道
func NewMQTTChannel(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTChannel {
	return &MQTTChannel{
		publisher:   publisher,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		qos:         qos,
		logger:      logger,
	}
}

// Topic 消息主题；无患者 ID 的消息发到 {prefix}/broadcast
func (c *MQTTChannel) Topic(payload interface{}) string {
	id := patientOf(payload)
	if id == "" {
		id = "broadcast"
	}
	return c.topicPrefix + "/" + id
}

// Send 发布消息
func (c *MQTTChannel) Send(ctx context.Context, messageType string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Type: messageType, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal mqtt message: %w", err)
	}

	topic := c.Topic(payload)
	if err := c.publisher.Publish(topic, c.qos, false, data); err != nil {
		return err
	}

	c.logger.Debug("Published notification to MQTT",
		zap.String("topic", topic),
		zap.String("type", messageType),
	)
	return nil
}
