// Package notify отправляет побочные уведомления о переходах заказа:
// сообщения системного чата и уведомления пользователей. Доставка best-effort:
// ошибки логируются и никогда не влияют на основную операцию.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ChatMessage описывает сообщение системного чата заказа.
type ChatMessage struct {
	OrderID int64  `json:"order_id"`
	Text    string `json:"text"`
}

// UserNotification описывает уведомление конкретному пользователю.
type UserNotification struct {
	UserID  int64  `json:"user_id"`
	OrderID int64  `json:"order_id"`
	Text    string `json:"text"`
}

// Notifier отправляет уведомления во внешние каналы по вебхукам.
// Пустой URL отключает соответствующий канал.
type Notifier struct {
	chatURL   string
	notifyURL string
	client    *retryablehttp.Client
	logger    *zap.Logger
}

// New создаёт отправитель уведомлений с указанными вебхуками.
func New(chatURL, notifyURL string, logger *zap.Logger) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil

	return &Notifier{
		chatURL:   chatURL,
		notifyURL: notifyURL,
		client:    client,
		logger:    logger,
	}
}

// SystemChat отправляет сообщение системного чата заказа.
func (n *Notifier) SystemChat(ctx context.Context, orderID int64, text string) {
	n.post(ctx, n.chatURL, ChatMessage{OrderID: orderID, Text: text})
}

// NotifyUser отправляет уведомление пользователю.
func (n *Notifier) NotifyUser(ctx context.Context, userID, orderID int64, text string) {
	n.post(ctx, n.notifyURL, UserNotification{UserID: userID, OrderID: orderID, Text: text})
}

func (n *Notifier) post(ctx context.Context, url string, payload any) {
	if n == nil || url == "" {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("notify marshal error", zap.Error(err))
		return
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("notify request error", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("notify delivery error", zap.String("url", url), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		n.logger.Warn("notify rejected", zap.String("url", url), zap.Int("status", resp.StatusCode))
	}
}
