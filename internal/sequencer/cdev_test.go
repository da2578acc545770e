//go:build linux

package sequencer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiosim"

	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/sequencer"
)

func TestSetPower_OnGPIOSim(t *testing.T) {
	sim, err := gpiosim.NewSim(
		gpiosim.WithName("campower_seq_test"),
		gpiosim.WithBank(gpiosim.NewBank("campower-seq", 12,
			gpiosim.WithNamedLine(4, "campower_seq_test_reset"),
		)),
	)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	t.Cleanup(func() { sim.Close() })
	c := &sim.Chips[0]

	table := line.Table{
		line.Reset:       {Name: "campower_seq_test_reset", FallbackPin: 10, Owner: "test_rst", DefaultLevel: line.Low},
		line.PowerDown:   {Name: "campower_seq_test_absent_pd", FallbackPin: 7, Owner: "test_pd", DefaultLevel: line.High},
		line.PowerEnable: {Name: "campower_seq_test_absent_en", FallbackPin: 3, Owner: "test_en", DefaultLevel: line.Low},
	}
	res := line.NewResolver(-1, table, line.CdevRegistry{Consumer: "campower-test"}, line.CdevRaw{Chip: c.ChipName()})
	t.Cleanup(res.Reset)
	s := sequencer.New(res, sequencer.Options{Sleep: func(time.Duration) {}})

	levels := func() []int {
		out := make([]int, 0, 3)
		for _, off := range []int{4, 7, 3} {
			v, err := c.Level(off)
			require.NoError(t, err)
			out = append(out, v)
		}
		return out
	}

	require.NoError(t, s.SetPower(true))
	assert.Equal(t, []int{1, 1, 1}, levels())

	require.NoError(t, s.SetPower(false))
	assert.Equal(t, []int{0, 0, 0}, levels())

	// Power-down is re-configured as an output on every power off.
	require.NoError(t, s.SetPower(true))
	require.NoError(t, s.SetPower(false))
	assert.Equal(t, []int{0, 0, 0}, levels())
	lvl, ok := s.Level(line.PowerDown)
	require.True(t, ok)
	assert.Equal(t, line.Low, lvl)
}
