package hrm

import (
	"encoding/binary"
	"time"

	"pulselink/internal/models"
)

// ParseMeasurement 解析BLE心率测量通知帧
//
// 字节0为标志位：bit0 选择8位/16位BPM编码；bit1 为接触状态值
// （仅当bit2置位时有意义）；bit2 表示是否上报接触状态；
// bit3 表示是否携带能量消耗字段。后续字节按累计偏移切分：
// BPM从偏移1开始占1或2字节；能量消耗（如有）紧随其后占2字节；
// 剩余字节按2字节一组消费为RR间期tick，单位 1/1024 秒。
//
// 调用方必须保证输入帧长度合法（至少2字节），本函数不做边界校验。
func ParseMeasurement(data []byte) models.Measurement {
	flags := data[0]
	is16Bit := flags&0x01 != 0
	hasContact := flags&0x04 != 0
	hasEnergy := flags&0x08 != 0

	m := models.Measurement{}

	if is16Bit {
		m.BPM = binary.LittleEndian.Uint16(data[1:3])
	} else {
		m.BPM = uint16(data[1])
	}

	if hasContact {
		if flags&0x02 != 0 {
			m.SensorContact = models.ContactDetected
		} else {
			m.SensorContact = models.ContactNoContact
		}
	} else {
		m.SensorContact = models.ContactNotSupported
	}

	// 能量消耗字段紧跟在BPM之后
	energyIndex := 2
	if is16Bit {
		energyIndex++
	}
	rrIndex := energyIndex
	if hasEnergy {
		energy := binary.LittleEndian.Uint16(data[energyIndex : energyIndex+2])
		m.EnergyExpended = &energy
		rrIndex += 2
	}

	// 剩余字节全部作为RR间期消费，旧的在前
	rrCount := (len(data) - rrIndex) / 2
	if rrCount > 0 {
		m.RRIntervals = make([]time.Duration, 0, rrCount)
		for i := 0; i < rrCount; i++ {
			ticks := binary.LittleEndian.Uint16(data[rrIndex+2*i : rrIndex+2*i+2])
			m.RRIntervals = append(m.RRIntervals, TicksToDuration(ticks))
		}
	}

	return m
}

// TicksToDuration 将 1/1024 秒为单位的tick转换为时长
func TicksToDuration(ticks uint16) time.Duration {
	return time.Duration(ticks) * time.Second / 1024
}
