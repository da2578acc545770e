package sequencer_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-nova/campower/internal/hardware"
	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/sequencer"
)

func newSequencer(b *hardware.Bench, strict bool) *sequencer.Sequencer {
	res := line.NewResolver(-1, line.DefaultTable(), b, b)
	return sequencer.New(res, sequencer.Options{Strict: strict, Sleep: b.Sleep})
}

func TestSetPower_On_Order(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	s := newSequencer(b, false)

	require.NoError(t, s.SetPower(true))
	b.ClearTrace()
	require.NoError(t, s.SetPower(true))

	assert.Equal(t, []hardware.Op{
		{Kind: hardware.OpSet, Target: "10", Level: line.High},
		{Kind: hardware.OpSet, Target: "7", Level: line.High},
		{Kind: hardware.OpSet, Target: "3", Level: line.High},
		{Kind: hardware.OpSleep, Value: int64(10 * time.Millisecond)},
	}, b.Trace())
}

func TestSetPower_Off_Order(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	s := newSequencer(b, false)
	require.NoError(t, s.SetPower(true))
	b.ClearTrace()

	require.NoError(t, s.SetPower(false))
	assert.Equal(t, []hardware.Op{
		{Kind: hardware.OpSet, Target: "10", Level: line.Low},
		{Kind: hardware.OpDirection, Target: "7", Level: line.Low},
		{Kind: hardware.OpSet, Target: "3", Level: line.Low},
	}, b.Trace())
	assert.Zero(t, b.Count(hardware.OpSleep))

	lvl, ok := s.Level(line.PowerDown)
	require.True(t, ok)
	assert.Equal(t, line.Low, lvl)
}

func TestSetPower_On_BlocksForSettle(t *testing.T) {
	b := hardware.NewBench()
	res := line.NewResolver(-1, line.DefaultTable(), b, b)
	s := sequencer.New(res, sequencer.Options{})

	start := time.Now()
	require.NoError(t, s.SetPower(true))
	assert.GreaterOrEqual(t, time.Since(start), sequencer.DefaultSettle)
}

func TestSetPower_ResolvesOncePerLine(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	s := newSequencer(b, false)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SetPower(i%2 == 0))
	}
	assert.Equal(t, 3, b.Count(hardware.OpLookup))
	assert.Equal(t, 3, b.Count(hardware.OpRequest))
}

func TestSetPower_FaultSkipsLineOnly(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	b.SetFailPin(7, errors.New("busy"))
	s := newSequencer(b, false)

	require.NoError(t, s.SetPower(true))

	faults := s.Faults()
	require.Len(t, faults, 1)
	assert.Equal(t, line.PowerDown, faults[0].Line)
	assert.Equal(t, "resolve", faults[0].Op)

	for _, pin := range []string{"10", "3"} {
		lvl, ok := b.Level(pin)
		require.True(t, ok)
		assert.Equal(t, line.High, lvl, "pin %s", pin)
	}
	assert.Equal(t, 1, b.Count(hardware.OpSleep))
}

func TestSetPower_StrictReturnsFaults(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	b.SetFailPin(7, errors.New("busy"))
	s := newSequencer(b, true)

	err := s.SetPower(true)
	require.Error(t, err)
	assert.ErrorIs(t, err, line.ErrLineAcquisition)

	var f sequencer.Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, line.PowerDown, f.Line)
}

func TestForget_ClearsLevels(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	s := newSequencer(b, false)
	require.NoError(t, s.SetPower(true))

	s.Forget()
	_, ok := s.Level(line.Reset)
	assert.False(t, ok)
	assert.Empty(t, s.Faults())
}

func TestLevel_OutOfRangeLine(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	s := newSequencer(b, false)
	require.NoError(t, s.SetPower(true))

	lvl, ok := s.Level(line.ControlLine(3))
	assert.False(t, ok)
	assert.Equal(t, line.Low, lvl)
}
