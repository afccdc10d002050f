package models

import (
	"encoding/json"
	"fmt"
)

// TextUpdate 文本源（websocket）上报的一条心率记录
type TextUpdate struct {
	BPM        uint16
	LatestRRMs *uint64
	Battery    *uint8
}

// UnmarshalJSON 解析文本源消息
// bpm 为必填字段，接受 "bpm" / "heartRate" / "heartrate" 三种字段名
func (u *TextUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		BPM        *uint16 `json:"bpm"`
		HeartRate  *uint16 `json:"heartRate"`
		HeartRate2 *uint16 `json:"heartrate"`
		LatestRRMs *uint64 `json:"latest_rr_ms"`
		Battery    *uint8  `json:"battery"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.BPM != nil:
		u.BPM = *raw.BPM
	case raw.HeartRate != nil:
		u.BPM = *raw.HeartRate
	case raw.HeartRate2 != nil:
		u.BPM = *raw.HeartRate2
	default:
		return fmt.Errorf("missing required field: bpm")
	}

	u.LatestRRMs = raw.LatestRRMs
	u.Battery = raw.Battery
	return nil
}
