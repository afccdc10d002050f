package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqttcommon "pulselink/internal/mqtt"
	"pulselink/internal/models"
)

// MQTTPublisher 将标准化状态发布到MQTT主题
type MQTTPublisher struct {
	client *mqttcommon.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

// NewMQTTPublisher 创建MQTT状态发布器
func NewMQTTPublisher(client *mqttcommon.Client, topic string, qos byte, logger *zap.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  topic,
		qos:    qos,
		logger: logger,
	}
}

// Name 返回接收端名称
func (p *MQTTPublisher) Name() string {
	return "mqtt"
}

// PublishStatus 发布一条状态
func (p *MQTTPublisher) PublishStatus(ctx context.Context, status models.Status) error {
	payload, err := json.Marshal(statusDoc(status))
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := p.client.Publish(p.topic, p.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}

	p.logger.Debug("Published status to MQTT",
		zap.String("topic", p.topic),
		zap.Uint16("bpm", status.BPM),
	)
	return nil
}
