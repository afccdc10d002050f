package hrm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulselink/internal/models"
)

func uint64Ptr(v uint64) *uint64 { return &v }
func uint8Ptr(v uint8) *uint8    { return &v }

func TestAggregator_ApplyMeasurement_KeepsOnlyNewestRR(t *testing.T) {
	agg := NewAggregator(0.1)

	s := agg.ApplyMeasurement(models.Measurement{
		BPM:         70,
		RRIntervals: []time.Duration{800 * time.Millisecond, 820 * time.Millisecond, 860 * time.Millisecond},
	})

	assert.Equal(t, uint16(70), s.BPM)
	assert.Equal(t, []time.Duration{860 * time.Millisecond}, s.RRIntervals)
}

func TestAggregator_ApplyMeasurement_EmptyRRLeavesPrevious(t *testing.T) {
	agg := NewAggregator(0.1)

	agg.ApplyMeasurement(models.Measurement{
		BPM:         70,
		RRIntervals: []time.Duration{860 * time.Millisecond},
	})
	s := agg.ApplyMeasurement(models.Measurement{BPM: 72})

	assert.Equal(t, uint16(72), s.BPM)
	assert.Equal(t, []time.Duration{860 * time.Millisecond}, s.RRIntervals)
}

func TestAggregator_ApplyTextUpdate_BatteryOnlyWhenReported(t *testing.T) {
	agg := NewAggregator(0.1)

	s := agg.ApplyTextUpdate(models.TextUpdate{BPM: 70, Battery: uint8Ptr(85)})
	require.Equal(t, models.BatteryReported, s.Battery.State)
	assert.Equal(t, uint8(85), s.Battery.Percent)

	// 不携带电池字段的更新保持先前指示不变
	s = agg.ApplyTextUpdate(models.TextUpdate{BPM: 72})
	assert.Equal(t, models.BatteryReported, s.Battery.State)
	assert.Equal(t, uint8(85), s.Battery.Percent)
}

func TestAggregator_ApplyTextUpdate_RRFromMilliseconds(t *testing.T) {
	agg := NewAggregator(0.1)

	s := agg.ApplyTextUpdate(models.TextUpdate{BPM: 60, LatestRRMs: uint64Ptr(850)})

	assert.Equal(t, []time.Duration{850 * time.Millisecond}, s.RRIntervals)
	assert.True(t, s.TwitchUp)
	assert.False(t, s.TwitchDown)
}

// 无RR字段的连续文本更新不得覆盖已观测到的真实间期
func TestAggregator_TextUpdates_NeverSynthesizeRR(t *testing.T) {
	agg := NewAggregator(0.1)

	agg.ApplyTextUpdate(models.TextUpdate{BPM: 60, LatestRRMs: uint64Ptr(1000)})
	agg.ApplyTextUpdate(models.TextUpdate{BPM: 65})
	agg.ApplyTextUpdate(models.TextUpdate{BPM: 70})
	s := agg.ApplyTextUpdate(models.TextUpdate{BPM: 75})

	assert.Equal(t, uint16(75), s.BPM)
	assert.Equal(t, []time.Duration{time.Second}, s.RRIntervals)
}

// 幂等：重复应用相同更新时第二次不改变突变标志
func TestAggregator_IdenticalUpdateIdempotent(t *testing.T) {
	agg := NewAggregator(0.1)
	u := models.TextUpdate{BPM: 60, LatestRRMs: uint64Ptr(850)}

	s1 := agg.ApplyTextUpdate(u)
	s2 := agg.ApplyTextUpdate(u)

	assert.Equal(t, s1.TwitchUp, s2.TwitchUp)
	assert.Equal(t, s1.TwitchDown, s2.TwitchDown)
	assert.Equal(t, s1.RRIntervals, s2.RRIntervals)
}

func TestAggregator_Reset(t *testing.T) {
	agg := NewAggregator(0.1)

	agg.ApplyTextUpdate(models.TextUpdate{BPM: 70, LatestRRMs: uint64Ptr(850), Battery: uint8Ptr(50)})
	s := agg.Reset()

	assert.Equal(t, models.Status{}, s)
	assert.Equal(t, models.Status{}, agg.Current())
}

func TestAggregator_SnapshotIsolation(t *testing.T) {
	agg := NewAggregator(0.1)

	s := agg.ApplyTextUpdate(models.TextUpdate{BPM: 70, LatestRRMs: uint64Ptr(850)})
	s.RRIntervals[0] = 0

	cur := agg.Current()
	assert.Equal(t, []time.Duration{850 * time.Millisecond}, cur.RRIntervals)
}
