package hrm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulselink/internal/models"
)

func rr(ticks uint16) time.Duration {
	return time.Duration(ticks) * time.Second / 1024
}

func TestParseMeasurement_Simplest(t *testing.T) {
	m := ParseMeasurement([]byte{0, 70})

	assert.Equal(t, uint16(70), m.BPM)
	assert.Equal(t, models.ContactNotSupported, m.SensorContact)
	assert.Nil(t, m.EnergyExpended)
	assert.Empty(t, m.RRIntervals)
}

func TestParseMeasurement_ContactNotDetected(t *testing.T) {
	m := ParseMeasurement([]byte{0b100, 70})

	assert.Equal(t, uint16(70), m.BPM)
	assert.Equal(t, models.ContactNoContact, m.SensorContact)
}

func TestParseMeasurement_ContactDetected(t *testing.T) {
	m := ParseMeasurement([]byte{0b110, 70})

	assert.Equal(t, uint16(70), m.BPM)
	assert.Equal(t, models.ContactDetected, m.SensorContact)
}

func TestParseMeasurement_16BitSimple(t *testing.T) {
	m := ParseMeasurement([]byte{1, 70, 0})

	assert.Equal(t, uint16(70), m.BPM)
	assert.Empty(t, m.RRIntervals)
}

func TestParseMeasurement_16BitBig(t *testing.T) {
	m := ParseMeasurement([]byte{1, 10, 1})

	assert.Equal(t, uint16(266), m.BPM)
}

func TestParseMeasurement_EnergyExpended(t *testing.T) {
	m := ParseMeasurement([]byte{0b1000, 70, 10, 1})

	assert.Equal(t, uint16(70), m.BPM)
	require.NotNil(t, m.EnergyExpended)
	assert.Equal(t, uint16(266), *m.EnergyExpended)
	assert.Empty(t, m.RRIntervals)
}

func TestParseMeasurement_16BitEnergyExpended(t *testing.T) {
	m := ParseMeasurement([]byte{0b1001, 70, 0, 10, 1})

	assert.Equal(t, uint16(70), m.BPM)
	require.NotNil(t, m.EnergyExpended)
	assert.Equal(t, uint16(266), *m.EnergyExpended)
	assert.Empty(t, m.RRIntervals)
}

func TestParseMeasurement_OneRRInterval(t *testing.T) {
	m := ParseMeasurement([]byte{0b10000, 70, 10, 1})

	assert.Equal(t, uint16(70), m.BPM)
	assert.Equal(t, []time.Duration{rr(266)}, m.RRIntervals)
}

func TestParseMeasurement_ThreeRRIntervals_OrderPreserved(t *testing.T) {
	m := ParseMeasurement([]byte{0b10000, 70, 10, 1, 11, 2, 12, 3})

	// 旧的在前：266, 523, 780 ticks
	assert.Equal(t, []time.Duration{rr(266), rr(523), rr(780)}, m.RRIntervals)
}

func TestParseMeasurement_16BitEnergyAndRRInterval(t *testing.T) {
	m := ParseMeasurement([]byte{0b11001, 70, 0, 11, 2, 10, 1})

	assert.Equal(t, uint16(70), m.BPM)
	require.NotNil(t, m.EnergyExpended)
	assert.Equal(t, uint16(523), *m.EnergyExpended)
	assert.Equal(t, []time.Duration{rr(266)}, m.RRIntervals)
}

// 对全部标志位组合验证字段存在性与标志位一致，且解码是确定性的
func TestParseMeasurement_FlagCombinations(t *testing.T) {
	for flags := 0; flags < 32; flags++ {
		frame := []byte{byte(flags), 70}
		if flags&0x01 != 0 {
			frame = append(frame, 0)
		}
		if flags&0x08 != 0 {
			frame = append(frame, 10, 1)
		}
		// 两条RR间期
		frame = append(frame, 10, 1, 11, 2)

		m1 := ParseMeasurement(frame)
		m2 := ParseMeasurement(frame)
		assert.Equal(t, m1, m2, "flags=%05b must decode deterministically", flags)

		assert.Equal(t, uint16(70), m1.BPM, "flags=%05b", flags)
		assert.Equal(t, flags&0x04 != 0, m1.SensorContact != models.ContactNotSupported, "flags=%05b", flags)
		assert.Equal(t, flags&0x08 != 0, m1.EnergyExpended != nil, "flags=%05b", flags)
		assert.Len(t, m1.RRIntervals, 2, "flags=%05b", flags)
	}
}
