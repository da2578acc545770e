// Package backend builds the platform subsystems for a board description.
package backend

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/micro-nova/campower/internal/clock"
	"github.com/micro-nova/campower/internal/config"
	"github.com/micro-nova/campower/internal/csi"
	"github.com/micro-nova/campower/internal/hardware"
	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/platform"
	"github.com/micro-nova/campower/internal/regulator"
)

// Build wires the board subsystems for the configured backend. The returned
// func releases anything that holds a connection.
func Build(board *config.Board) (platform.Deps, func(), error) {
	if board.Backend == config.BackendMock {
		b := hardware.NewBench()
		return platform.Deps{
			Registry:   b,
			Raw:        b,
			Regulators: b,
			Clock:      b,
			Link:       b,
			Sleep:      b.Sleep,
		}, func() {}, nil
	}

	var deps platform.Deps
	switch board.Backend {
	case config.BackendPeriph:
		reg, err := line.NewPeriphRegistry(board.Aliases)
		if err != nil {
			return platform.Deps{}, nil, err
		}
		raw, err := line.NewPeriphRaw()
		if err != nil {
			return platform.Deps{}, nil, err
		}
		deps.Registry, deps.Raw = reg, raw
	case config.BackendCdev:
		deps.Registry = line.CdevRegistry{Consumer: line.DefaultConsumer}
		deps.Raw = line.CdevRaw{Chip: board.GPIOChip}
		// the oscillator still goes through periph.io
		if err := line.InitHost(); err != nil {
			return platform.Deps{}, nil, err
		}
	default:
		return platform.Deps{}, nil, fmt.Errorf("backend: unknown backend %q", board.Backend)
	}

	deps.Clock = clock.PeriphOscillator{Pins: board.Oscillators}
	deps.Regulators = regulator.SysfsProvider{Root: board.RegulatorRoot}
	link := &csi.DBusLink{
		Dest:      board.DBus.Dest,
		Path:      dbus.ObjectPath(board.DBus.Path),
		Interface: board.DBus.Interface,
	}
	deps.Link = link
	slog.Info("backend: board subsystems ready",
		"backend", board.Backend,
		"regulators", board.RegulatorRoot,
		"isp", board.DBus.Dest,
	)
	return deps, func() {
		if err := link.Close(); err != nil {
			slog.Warn("backend: dbus close failed", "err", err)
		}
	}, nil
}
