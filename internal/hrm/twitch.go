package hrm

import "time"

// Twitcher RR间期突变检测器
// 将最近一次RR间期与由BPM推导的期望间期比较，
// 偏差超过阈值比例时置位对应方向的标志
type Twitcher struct {
	// Threshold 阈值比例（如 0.1 = 10%）。恰好等于阈值不算突变
	Threshold float64
}

// NewTwitcher 创建突变检测器
func NewTwitcher(threshold float64) Twitcher {
	return Twitcher{Threshold: threshold}
}

// Handle 检测最近一次RR间期相对期望间期的偏移
// 返回 (up, down)：up 表示间期变短（心率加快），down 表示间期变长（心率减慢）
// RR序列为空或BPM为0时两者均为false
func (t Twitcher) Handle(bpm uint16, rrIntervals []time.Duration) (up, down bool) {
	if bpm == 0 || len(rrIntervals) == 0 {
		return false, false
	}

	expected := 60.0 / float64(bpm)
	actual := rrIntervals[len(rrIntervals)-1].Seconds()
	margin := t.Threshold * expected

	if expected-actual > margin {
		up = true
	}
	if actual-expected > margin {
		down = true
	}
	return up, down
}
