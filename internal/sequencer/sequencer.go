// Package sequencer drives the sensor's control lines through its power-up
// and power-down order.
package sequencer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-nova/campower/internal/line"
)

// DefaultSettle is the minimum wait after power-up before the sensor may be
// addressed (10-11 ms window).
const DefaultSettle = 10 * time.Millisecond

// Fault is a line that could not be driven during a transition.
type Fault struct {
	Line line.ControlLine
	Op   string
	Err  error
}

func (f Fault) Error() string {
	return fmt.Sprintf("sequencer: %s %s: %v", f.Line, f.Op, f.Err)
}

func (f Fault) Unwrap() error { return f.Err }

// Options tune a Sequencer.
type Options struct {
	// Settle is held after all lines are asserted on power-up.
	Settle time.Duration
	// Strict returns line faults from SetPower instead of only logging them.
	Strict bool
	// Sleep replaces time.Sleep, for tests.
	Sleep func(time.Duration)
}

// Sequencer owns the control lines of one sensor.
type Sequencer struct {
	res    *line.Resolver
	settle time.Duration
	strict bool
	sleep  func(time.Duration)

	faults []Fault
	levels [len(line.All)]line.Level
	driven [len(line.All)]bool
}

// New returns a sequencer resolving its lines through res.
func New(res *line.Resolver, opts Options) *Sequencer {
	s := &Sequencer{
		res:    res,
		settle: opts.Settle,
		strict: opts.Strict,
		sleep:  opts.Sleep,
	}
	if s.settle <= 0 {
		s.settle = DefaultSettle
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	return s
}

// Faults returns the faults recorded by the last SetPower call.
func (s *Sequencer) Faults() []Fault {
	out := make([]Fault, len(s.faults))
	copy(out, s.faults)
	return out
}

// SetPower runs the power-up (on) or power-down sequence. The sequence is
// always carried through to the end; a line that cannot be driven is
// recorded as a fault and skipped.
//
// Power-up: reset, power-down and power-enable all driven high, then the
// settle delay. Power-down: reset low, power-down re-configured as an output
// at low, power-enable low.
func (s *Sequencer) SetPower(on bool) error {
	s.faults = s.faults[:0]

	var h [len(line.All)]line.Handle
	for i, l := range line.All {
		res := s.res.Resolve(l)
		if !res.Usable() {
			s.fault(l, "resolve", res.Err)
			continue
		}
		h[i] = res.Handle
	}

	if on {
		s.drive(h[line.Reset], line.Reset, "set", line.High, false)
		s.drive(h[line.PowerDown], line.PowerDown, "set", line.High, false)
		s.drive(h[line.PowerEnable], line.PowerEnable, "set", line.High, false)
		s.sleep(s.settle)
	} else {
		s.drive(h[line.Reset], line.Reset, "set", line.Low, false)
		s.drive(h[line.PowerDown], line.PowerDown, "direction_output", line.Low, true)
		s.drive(h[line.PowerEnable], line.PowerEnable, "set", line.Low, false)
	}
	slog.Debug("sequencer: power transition done", "on", on, "faults", len(s.faults))

	if s.strict && len(s.faults) > 0 {
		errs := make([]error, len(s.faults))
		for i, f := range s.faults {
			errs[i] = f
		}
		return errors.Join(errs...)
	}
	return nil
}

func (s *Sequencer) drive(h line.Handle, l line.ControlLine, op string, lvl line.Level, direction bool) {
	if h == nil {
		return
	}
	var err error
	if direction {
		err = h.DirectionOutput(lvl)
	} else {
		err = h.Set(lvl)
	}
	if err != nil {
		s.fault(l, op, err)
		return
	}
	s.levels[l] = lvl
	s.driven[l] = true
}

// Level returns the last level successfully driven on l.
func (s *Sequencer) Level(l line.ControlLine) (line.Level, bool) {
	if !l.Valid() {
		return line.Low, false
	}
	return s.levels[l], s.driven[l]
}

// Forget clears driven levels, e.g. when the lines are re-resolved.
func (s *Sequencer) Forget() {
	s.levels = [len(line.All)]line.Level{}
	s.driven = [len(line.All)]bool{}
	s.faults = s.faults[:0]
}

func (s *Sequencer) fault(l line.ControlLine, op string, err error) {
	slog.Warn("sequencer: line fault", "line", l, "op", op, "err", err)
	s.faults = append(s.faults, Fault{Line: l, Op: op, Err: err})
}
