package channel

import (
	"context"
	"errors"
	"fmt"

	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// Envelope 出站消息外壳
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Channel 通知通道
type Channel interface {
	Send(ctx context.Context, messageType string, payload interface{}) error
}

// MultiChannel 依次发送到所有通道，任一失败都返回合并错误
type MultiChannel struct {
	channels []namedChannel
	logger   *zap.Logger
}

type namedChannel struct {
	name string
	ch   Channel
}

// NewMultiChannel 创建扇出通道
func NewMultiChannel(logger *zap.Logger) *MultiChannel {
	return &MultiChannel{logger: logger}
}

// Add 追加通道
func (c *MultiChannel) Add(name string, ch Channel) *MultiChannel {
	c.channels = append(c.channels, namedChannel{name: name, ch: ch})
	return c
}

// Len 通道数
func (c *MultiChannel) Len() int {
	return len(c.channels)
}

// Send 发送到全部通道；一个通道失败不影响其他通道
func (c *MultiChannel) Send(ctx context.Context, messageType string, payload interface{}) error {
	var errs []error
	for _, nc := range c.channels {
		if err := nc.ch.Send(ctx, messageType, payload); err != nil {
			c.logger.Warn("Notification channel failed",
				zap.String("channel", nc.name),
				zap.String("type", messageType),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", nc.name, err))
		}
	}
	return errors.Join(errs...)
}

// patientOf 从消息中取患者 ID
func patientOf(payload interface{}) string {
	switch p := payload.(type) {
	case *m.ThresholdMessage:
		return p.PatientID
	case m.ThresholdMessage:
		return p.PatientID
	case map[string]interface{}:
		if id, ok := p["patientId"].(string); ok {
			return id
		}
	}
	return ""
}
