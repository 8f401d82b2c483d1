package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqttcommon "vital-monitor/common/mqtt"
	rediscommon "vital-monitor/common/redis"
	"vital-monitor/internal/models"
	"vital-monitor/internal/transformer"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 设备读数 MQTT 消费者：vitals/{patient_id}/readings -> Redis Streams
type MQTTConsumer struct {
	subscriber  Subscriber
	redisClient *redis.Client
	topic       string
	stream      string
	qos         byte
	logger      *zap.Logger
	now         func() time.Time
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	subscriber Subscriber,
	redisClient *redis.Client,
	topic, stream string,
	qos byte,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		subscriber:  subscriber,
		redisClient: redisClient,
		topic:       topic,
		stream:      stream,
		qos:         qos,
		logger:      logger,
		now:         time.Now,
	}
}

// Start 订阅主题并阻塞到 ctx 取消
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.subscriber.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.topic),
		zap.String("stream", c.stream),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT consumer stopped")
}

// handleMessage 负载为单个 JSON 对象或对象数组，每个对象发布为一条流消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	// 主题格式: vitals/{patient_id}/readings
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[1] == "" {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	patientID := parts[1]

	objects, err := decodePayload(payload)
	if err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	receivedAt := c.now()
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		msg := models.VitalMessage{
			PatientID:  patientID,
			Topic:      topic,
			ReceivedAt: receivedAt.UnixMilli(),
			Payload:    obj,
		}
		if id, ok := obj["device_id"].(string); ok {
			msg.DeviceID = id
		}
		if !hasTimeField(obj) {
			obj["time"] = receivedAt.UTC().Format(time.RFC3339Nano)
		}

		streamID, err := rediscommon.PublishJSONToStream(context.Background(), c.redisClient, c.stream, msg)
		if err != nil {
			return fmt.Errorf("failed to publish to stream: %w", err)
		}
		c.logger.Debug("Published reading to Redis Streams",
			zap.String("patient_id", patientID),
			zap.String("stream", c.stream),
			zap.String("stream_id", streamID),
		)
	}
	return nil
}

func decodePayload(payload []byte) ([]map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(payload)
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var objects []map[string]interface{}
		if err := dec.Decode(&objects); err != nil {
			return nil, err
		}
		return objects, nil
	}

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("empty payload")
	}
	return []map[string]interface{}{obj}, nil
}

// hasTimeField 负载中是否已有时间列（标准名或别名）
func hasTimeField(obj map[string]interface{}) bool {
	spec := transformer.DefaultFieldSpecs()[0]
	names := append([]string{spec.Canonical}, spec.Aliases...)
	for key := range obj {
		k := strings.ToLower(strings.TrimSpace(key))
		for _, name := range names {
			if k == strings.ToLower(name) {
				return true
			}
		}
	}
	return false
}
