package publisher

import (
	"context"
	"time"

	"pulselink/internal/models"
)

// Sink 状态下游接收端
// 发布失败由调用方记录，不重试也不中断主循环
type Sink interface {
	Name() string
	PublishStatus(ctx context.Context, status models.Status) error
}

// statusDoc 构建标准化状态数据
func statusDoc(status models.Status) map[string]interface{} {
	doc := map[string]interface{}{
		"bpm":         status.BPM,
		"connected":   status.BPM > 0,
		"twitch_up":   status.TwitchUp,
		"twitch_down": status.TwitchDown,
		"timestamp":   time.Now().Unix(),
	}

	if rr, ok := status.LatestRR(); ok {
		doc["latest_rr_ms"] = rr.Milliseconds()
	}
	if status.Battery.State == models.BatteryReported {
		doc["battery"] = status.Battery.Percent
	}

	return doc
}
