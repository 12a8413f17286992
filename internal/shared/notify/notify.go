// Package notify 对外通知发送。低库存告警与完工事件通过Webhook推送，
// 发送失败只记日志，绝不回滚库存事务。
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/bitfantasy/nimo-inventory/internal/config"
)

// Notifier 通知收集方的窄接口
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// WebhookClient resty实现，向配置的Webhook地址POST消息
type WebhookClient struct {
	http    *resty.Client
	enabled bool
	logger  *zap.Logger
}

func NewWebhookClient(cfg config.NotifyConfig, logger *zap.Logger) *WebhookClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.
		SetBaseURL(cfg.WebhookURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookClient{
		http:    client,
		enabled: cfg.Enabled && cfg.WebhookURL != "",
		logger:  logger,
	}
}

type webhookPayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func (c *WebhookClient) Send(ctx context.Context, title, message string) error {
	if !c.enabled {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(webhookPayload{Title: title, Text: message}).
		Post("")
	if err != nil {
		c.logger.Warn("notification delivery failed",
			zap.String("title", title), zap.Error(err))
		return fmt.Errorf("通知发送失败: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("notification endpoint rejected message",
			zap.String("title", title), zap.Int("status", resp.StatusCode()))
		return fmt.Errorf("通知端点返回 %d", resp.StatusCode())
	}
	return nil
}

// Nop 丢弃所有通知（测试或未配置Webhook时使用）
type Nop struct{}

func (Nop) Send(ctx context.Context, title, message string) error { return nil }
