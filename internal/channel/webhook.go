package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookChannel 以 JSON POST 推送消息
type WebhookChannel struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookChannel 创建 Webhook 通道
func NewWebhookChannel(url string, timeout time.Duration, retries int, logger *zap.Logger) *WebhookChannel {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookChannel{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Send 推送消息，非 2xx 视为失败
func (c *WebhookChannel) Send(ctx context.Context, messageType string, payload interface{}) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-Message-Type", messageType).
		SetBody(Envelope{Type: messageType, Data: payload}).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("Webhook returned error",
			zap.String("url", c.url),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}
	return nil
}
