package platform_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-nova/campower/internal/hardware"
	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/platform"
	"github.com/micro-nova/campower/internal/regulator"
)

func benchDeps(b *hardware.Bench) platform.Deps {
	return platform.Deps{Registry: b, Raw: b, Regulators: b, Clock: b, Link: b, Sleep: b.Sleep}
}

func attach(t *testing.T, b *hardware.Bench) *platform.Sensor {
	t.Helper()
	b.SetRealSleep(false)
	s, err := platform.Attach(platform.Device{Name: "ov9724", Peripheral: -1}, benchDeps(b), platform.DefaultOptions())
	require.NoError(t, err)
	return s
}

func TestAttach_BindsRegulatorOnly(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)

	assert.Equal(t, []hardware.Op{
		{Kind: hardware.OpRegGet, Target: "vprog1"},
		{Kind: hardware.OpSetVoltage, Target: "vprog1", Value: regulator.DefaultMicrovolts},
	}, b.Trace())

	st := s.Status()
	assert.True(t, st.Attached)
	assert.True(t, st.Bound)
	assert.False(t, st.RailEnabled)
	require.Len(t, st.Lines, 3)
	for _, ls := range st.Lines {
		assert.False(t, ls.Resolved, ls.Line)
	}
}

func TestAttach_MissingSubsystem(t *testing.T) {
	b := hardware.NewBench()
	deps := benchDeps(b)
	deps.Link = nil
	_, err := platform.Attach(platform.Device{Name: "ov9724"}, deps, platform.DefaultOptions())
	assert.Error(t, err)
}

func TestAttach_VoltageFailure(t *testing.T) {
	b := hardware.NewBench()
	b.SetFail(hardware.OpSetVoltage, errors.New("out of range"))
	_, err := platform.Attach(platform.Device{Name: "ov9724"}, benchDeps(b), platform.DefaultOptions())
	assert.Error(t, err)
	assert.Equal(t, 1, b.Count(hardware.OpPut))
}

func TestGPIOCtrl_AllFallback(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)

	require.NoError(t, s.GPIOCtrl(true))
	for _, pin := range []string{"10", "7", "3"} {
		lvl, ok := b.Level(pin)
		require.True(t, ok)
		assert.Equal(t, line.High, lvl, "pin %s", pin)
	}
	assert.Equal(t, 1, b.Count(hardware.OpSleep))

	require.NoError(t, s.GPIOCtrl(false))
	for _, pin := range []string{"10", "7", "3"} {
		lvl, _ := b.Level(pin)
		assert.Equal(t, line.Low, lvl, "pin %s", pin)
	}

	st := s.Status()
	for _, ls := range st.Lines {
		assert.True(t, ls.Resolved)
		assert.Equal(t, "fallback", ls.Source)
		require.NotNil(t, ls.Pin)
		require.NotNil(t, ls.Level)
		assert.False(t, *ls.Level)
	}
	assert.Equal(t, 3, b.Count(hardware.OpRequest))
}

func TestPowerCtrl_Idempotent(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)

	require.NoError(t, s.PowerCtrl(true))
	require.NoError(t, s.PowerCtrl(true))
	require.NoError(t, s.PowerCtrl(false))
	assert.Equal(t, 1, b.Count(hardware.OpEnable))
	assert.Equal(t, 1, b.Count(hardware.OpDisable))
}

func TestFlisClkCtrlAndCSICfg(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)

	require.NoError(t, s.FlisClkCtrl(true))
	assert.Equal(t, uint32(19200), b.ClockKHz(1))
	require.NoError(t, s.CSICfg(context.Background(), true))

	st := s.Status()
	assert.True(t, st.ClockOn)
	assert.True(t, st.Link.Up)
	assert.Equal(t, "secondary", st.Link.Port)
	assert.Equal(t, "raw10", st.Link.Format)
	assert.Equal(t, "bggr", st.Link.Bayer)
}

func TestPlatformInit_Idempotent(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)

	require.NoError(t, s.PlatformInit())
	assert.Equal(t, 1, b.Count(hardware.OpRegGet))
}

func TestPlatformDeinit_LeavesRailOn(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)
	require.NoError(t, s.PowerCtrl(true))

	require.NoError(t, s.PlatformDeinit())
	assert.True(t, b.RailOn("vprog1"))
	assert.Zero(t, b.Count(hardware.OpDisable))
	assert.ErrorIs(t, s.PowerCtrl(false), regulator.ErrNotBound)

	require.NoError(t, s.PlatformInit())
	assert.Equal(t, 2, b.Count(hardware.OpRegGet))
}

func TestDetach_EntryPointsRefuse(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)
	s.Detach()

	assert.ErrorIs(t, s.GPIOCtrl(true), platform.ErrDetached)
	assert.ErrorIs(t, s.FlisClkCtrl(true), platform.ErrDetached)
	assert.ErrorIs(t, s.PowerCtrl(true), platform.ErrDetached)
	assert.ErrorIs(t, s.CSICfg(context.Background(), true), platform.ErrDetached)
	assert.False(t, s.Status().Attached)
}

func TestReattach_ResolvesAgain(t *testing.T) {
	b := hardware.NewBench()
	s := attach(t, b)
	require.NoError(t, s.GPIOCtrl(true))
	s.Detach()

	s2 := attach(t, b)
	require.NoError(t, s2.GPIOCtrl(true))
	assert.Equal(t, 6, b.Count(hardware.OpRequest))
	assert.Equal(t, 1, b.Count(hardware.OpPut))
}

func TestSensors_Independent(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	deps := benchDeps(b)
	front, err := platform.Attach(platform.Device{Name: "front"}, deps, platform.DefaultOptions())
	require.NoError(t, err)
	rearOpts := platform.DefaultOptions()
	rearOpts.Supply = "vprog2"
	rear, err := platform.Attach(platform.Device{Name: "rear"}, deps, rearOpts)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, s := range []*platform.Sensor{front, rear} {
		wg.Add(1)
		go func(s *platform.Sensor) {
			defer wg.Done()
			assert.NoError(t, s.PowerCtrl(true))
		}(s)
	}
	wg.Wait()
	assert.True(t, b.RailOn("vprog1"))
	assert.True(t, b.RailOn("vprog2"))
}
