package models

import "time"

// ContactState 传感器接触状态（三值：设备不支持 / 未接触 / 已接触）
type ContactState int

const (
	ContactNotSupported ContactState = iota
	ContactNoContact
	ContactDetected
)

// Measurement 一次解码后的心率测量
type Measurement struct {
	BPM uint16

	SensorContact ContactState

	// 累计能量消耗（焦耳）。超长会话可能回绕，不做修正。
	// nil 表示设备未上报该字段
	EnergyExpended *uint16

	// RR间期序列，旧的在前。设备心跳频率低于通知频率时，
	// 空序列与"设备不支持"无法区分
	RRIntervals []time.Duration
}
