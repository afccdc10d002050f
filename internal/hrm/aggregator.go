package hrm

import (
	"sync"
	"time"

	"pulselink/internal/models"
)

// Aggregator 状态聚合器
// 将来自任一数据源（BLE测量或文本源）的更新折叠进共享的当前状态，
// 并在每次折叠后同步运行突变检测
type Aggregator struct {
	mu       sync.Mutex
	status   models.Status
	twitcher Twitcher
}

// NewAggregator 创建状态聚合器
func NewAggregator(twitchThreshold float64) *Aggregator {
	return &Aggregator{
		twitcher: NewTwitcher(twitchThreshold),
	}
}

// ApplyMeasurement 折叠一条BLE测量
// RR序列非空时仅保留最新一条间期，旧条目丢弃不追加；
// 测量不携带电池信息，电池指示保持不变
func (a *Aggregator) ApplyMeasurement(m models.Measurement) models.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.status.BPM = m.BPM
	if len(m.RRIntervals) > 0 {
		a.status.RRIntervals = []time.Duration{m.RRIntervals[len(m.RRIntervals)-1]}
	}

	a.refreshTwitch()
	return a.snapshot()
}

// ApplyTextUpdate 折叠一条文本源记录
// 电池电量仅在记录携带时更新
func (a *Aggregator) ApplyTextUpdate(u models.TextUpdate) models.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.status.BPM = u.BPM
	if u.LatestRRMs != nil {
		a.status.RRIntervals = []time.Duration{time.Duration(*u.LatestRRMs) * time.Millisecond}
	}
	if u.Battery != nil {
		a.status.Battery = models.BatteryLevel{State: models.BatteryReported, Percent: *u.Battery}
	}

	a.refreshTwitch()
	return a.snapshot()
}

// Current 返回当前状态快照
func (a *Aggregator) Current() models.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

// Reset 断连或关闭时将状态重置为默认值
func (a *Aggregator) Reset() models.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = models.Status{}
	return a.snapshot()
}

func (a *Aggregator) refreshTwitch() {
	up, down := a.twitcher.Handle(a.status.BPM, a.status.RRIntervals)
	a.status.TwitchUp = up
	a.status.TwitchDown = down
}

// snapshot 复制当前状态，调用方持有锁
func (a *Aggregator) snapshot() models.Status {
	s := a.status
	if len(a.status.RRIntervals) > 0 {
		s.RRIntervals = make([]time.Duration, len(a.status.RRIntervals))
		copy(s.RRIntervals, a.status.RRIntervals)
	}
	return s
}
