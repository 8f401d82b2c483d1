package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonredis "vital-monitor/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNoRecipient 未指定收件地址
var ErrNoRecipient = errors.New("notification recipient is required")

// Message 纯文本通知
type Message struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	PatientID string    `json:"patient_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier 通知交接（实际的邮件/短信发送由外部服务完成）
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier 只写日志
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("Notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("patient_id", msg.PatientID),
		zap.String("body", msg.Body),
	)
	return nil
}

// StreamNotifier 将通知写入 Redis Streams，由外部发送方消费
type StreamNotifier struct {
	client *redis.Client
	stream string
}

func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{client: client, stream: stream}
}

func (n *StreamNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	if _, err := commonredis.PublishJSONToStream(ctx, n.client, n.stream, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// MultiNotifier 依次交给多个 Notifier，汇总全部错误
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) Notify(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, n := range m.notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
