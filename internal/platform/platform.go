// Package platform binds one camera sensor to its board resources and
// exposes the six platform entry points a sensor driver calls: line
// sequencing, clock, power rail, CSI link, and the init/deinit hooks.
//
// All mutable per-sensor state (resolved lines, rail flag, clock and link
// state) lives in a Sensor. Every entry point holds the sensor's lock for
// the whole call, so overlapping callers are serialised per sensor while
// separate sensors proceed independently.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-nova/campower/internal/clock"
	"github.com/micro-nova/campower/internal/csi"
	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/models"
	"github.com/micro-nova/campower/internal/regulator"
	"github.com/micro-nova/campower/internal/sequencer"
)

// Data is the platform contract consumed by a sensor driver.
type Data interface {
	GPIOCtrl(on bool) error
	FlisClkCtrl(on bool) error
	PowerCtrl(on bool) error
	CSICfg(ctx context.Context, on bool) error
	PlatformInit() error
	PlatformDeinit() error
}

// Device identifies the sensor being attached.
type Device struct {
	Name       string
	Peripheral int // index passed to the line registry
}

// Deps are the board subsystems a sensor is driven through.
type Deps struct {
	Registry   line.Registry // may be nil: every line then uses its fallback pin
	Raw        line.Raw
	Regulators regulator.Provider
	Clock      clock.Subsystem
	Link       csi.Subsystem
	Sleep      func(time.Duration) // settle delay; nil means time.Sleep
}

// Options are the board constants for one sensor.
type Options struct {
	Lines        line.Table
	Supply       string
	Microvolts   int
	ClockChannel int
	ClockKHz     uint32
	Link         csi.LinkConfig
	Settle       time.Duration
	StrictLines  bool
}

// DefaultOptions returns the OV9724 secondary camera constants.
func DefaultOptions() Options {
	return Options{
		Lines:        line.DefaultTable(),
		Supply:       "vprog1",
		Microvolts:   regulator.DefaultMicrovolts,
		ClockChannel: 1,
		ClockKHz:     clock.DefaultKHz,
		Link:         csi.DefaultLink,
		Settle:       sequencer.DefaultSettle,
	}
}

// ErrDetached is returned by entry points of a detached sensor.
var ErrDetached = errors.New("platform: sensor detached")

// Sensor is the per-device context. It implements Data.
type Sensor struct {
	mu   sync.Mutex
	dev  Device
	deps Deps
	opts Options

	res  *line.Resolver
	seq  *sequencer.Sequencer
	clk  *clock.Controller
	link *csi.Configurer
	rail *regulator.Binding

	attached bool
	clockOn  bool
	linkUp   bool
}

var _ Data = (*Sensor)(nil)

// Attach builds the sensor context with no lines resolved and binds its
// regulator. A regulator failure is returned and nothing stays acquired.
func Attach(dev Device, deps Deps, opts Options) (*Sensor, error) {
	if deps.Raw == nil || deps.Regulators == nil || deps.Clock == nil || deps.Link == nil {
		return nil, fmt.Errorf("platform: attach %s: missing subsystem", dev.Name)
	}
	res := line.NewResolver(dev.Peripheral, opts.Lines, deps.Registry, deps.Raw)
	s := &Sensor{
		dev:  dev,
		deps: deps,
		opts: opts,
		res:  res,
		seq: sequencer.New(res, sequencer.Options{
			Settle: opts.Settle,
			Strict: opts.StrictLines,
			Sleep:  deps.Sleep,
		}),
		clk:  clock.New(deps.Clock, opts.ClockChannel, opts.ClockKHz),
		link: csi.New(deps.Link, opts.Link),
	}
	if err := s.PlatformInit(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.attached = true
	s.mu.Unlock()
	slog.Info("platform: sensor attached", "sensor", dev.Name, "peripheral", dev.Peripheral, "supply", opts.Supply)
	return s, nil
}

// Detach releases the regulator binding. Like PlatformDeinit it does not
// switch off a rail that is still enabled.
func (s *Sensor) Detach() {
	if err := s.PlatformDeinit(); err != nil {
		slog.Warn("platform: deinit failed", "sensor", s.dev.Name, "err", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached = false
	s.res.Reset()
	s.seq.Forget()
	slog.Info("platform: sensor detached", "sensor", s.dev.Name)
}

// Name returns the device name.
func (s *Sensor) Name() string { return s.dev.Name }

// GPIOCtrl runs the control-line power sequence. On power-up it returns
// only after the settle delay.
func (s *Sensor) GPIOCtrl(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return ErrDetached
	}
	return s.seq.SetPower(on)
}

// FlisClkCtrl switches the sensor's input clock.
func (s *Sensor) FlisClkCtrl(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return ErrDetached
	}
	if err := s.clk.SetClock(on); err != nil {
		return err
	}
	s.clockOn = on
	return nil
}

// PowerCtrl switches the voltage rail. Redundant requests are no-ops.
func (s *Sensor) PowerCtrl(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return ErrDetached
	}
	if s.rail == nil {
		return regulator.ErrNotBound
	}
	return s.rail.SetPowerRail(on)
}

// CSICfg declares (on) or tears down the sensor's CSI link.
func (s *Sensor) CSICfg(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.attached {
		return ErrDetached
	}
	if err := s.link.Configure(ctx, on); err != nil {
		return err
	}
	s.linkUp = on
	return nil
}

// PlatformInit binds the regulator if it is not bound yet.
func (s *Sensor) PlatformInit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rail != nil {
		return nil
	}
	b, err := regulator.Init(s.deps.Regulators, s.dev.Name, s.opts.Supply, s.opts.Microvolts)
	if err != nil {
		return err
	}
	s.rail = b
	return nil
}

// PlatformDeinit releases the regulator binding.
func (s *Sensor) PlatformDeinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rail == nil {
		return nil
	}
	s.rail.Deinit()
	s.rail = nil
	return nil
}

// Status returns a snapshot of the sensor.
func (s *Sensor) Status() models.SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.SensorStatus{
		Name:       s.dev.Name,
		Peripheral: s.dev.Peripheral,
		Attached:   s.attached,
		Bound:      s.rail != nil,
		Supply:     s.opts.Supply,
		Microvolts: s.opts.Microvolts,
		ClockOn:    s.clockOn,
		ClockKHz:   s.opts.ClockKHz,
		Link: models.LinkStatus{
			Port:   s.opts.Link.Port.String(),
			Lanes:  s.opts.Link.Lanes,
			Format: s.opts.Link.Format.String(),
			Bayer:  s.opts.Link.Bayer.String(),
			Up:     s.linkUp,
		},
	}
	if s.rail != nil {
		st.RailEnabled = s.rail.Enabled()
	}
	faults := make(map[line.ControlLine]string)
	for _, f := range s.seq.Faults() {
		faults[f.Line] = f.Error()
	}
	for _, l := range line.All {
		ls := models.LineStatus{Line: l.String()}
		if res, ok := s.res.Cached(l); ok {
			ls.Resolved = true
			ls.Source = res.Source.String()
			if res.Handle != nil {
				ls.Handle = res.Handle.String()
			}
			if res.Source == line.FromFallback {
				pin := res.Pin
				ls.Pin = &pin
			}
			if res.Err != nil {
				ls.Fault = res.Err.Error()
			}
		}
		if lvl, ok := s.seq.Level(l); ok {
			v := bool(lvl)
			ls.Level = &v
		}
		if f, ok := faults[l]; ok && ls.Fault == "" {
			ls.Fault = f
		}
		st.Lines = append(st.Lines, ls)
	}
	return st
}
