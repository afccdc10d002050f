package publisher

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "pulselink/internal/redis"
	"pulselink/internal/models"
)

// StreamPublisher 将标准化状态发布到 Redis Streams
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamPublisher 创建 Redis Streams 状态发布器
func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Name 返回接收端名称
func (p *StreamPublisher) Name() string {
	return "redis-stream"
}

// PublishStatus 发布一条状态
func (p *StreamPublisher) PublishStatus(ctx context.Context, status models.Status) error {
	streamID, err := rediscommon.PublishJSONToStream(ctx, p.client, p.stream, statusDoc(status))
	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	p.logger.Debug("Published status to Redis Streams",
		zap.String("stream", p.stream),
		zap.String("stream_id", streamID),
		zap.Uint16("bpm", status.BPM),
	)
	return nil
}
