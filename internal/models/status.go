package models

import "time"

// BatteryState 电池上报状态（三值：未上报 / 未知 / 已上报百分比）
type BatteryState int

const (
	BatteryNotReported BatteryState = iota
	BatteryUnknown
	BatteryReported
)

// BatteryLevel 电池电量指示
type BatteryLevel struct {
	State   BatteryState
	Percent uint8 // 仅当 State == BatteryReported 时有效
}

// Status 系统对当前心率活动的唯一认知
// BPM == 0 始终表示"未检测到心跳"，同时作为断连哨兵值
type Status struct {
	BPM         uint16
	Battery     BatteryLevel
	RRIntervals []time.Duration
	TwitchUp    bool
	TwitchDown  bool
}

// LatestRR 返回最近一次RR间期
func (s *Status) LatestRR() (time.Duration, bool) {
	if len(s.RRIntervals) == 0 {
		return 0, false
	}
	return s.RRIntervals[len(s.RRIntervals)-1], true
}
