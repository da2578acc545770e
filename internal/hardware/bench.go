// Package hardware provides Bench, an in-memory stand-in for every subsystem
// the sensor platform talks to: the board line registry, raw line requests,
// the regulator framework, the oscillator and the CSI receiver. Every call is
// appended to a trace so tests can check ordering and call counts, and
// failures can be injected per operation.
package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/micro-nova/campower/internal/csi"
	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/regulator"
)

// OpKind names a recorded bench operation.
type OpKind string

const (
	OpLookup     OpKind = "lookup"
	OpRequest    OpKind = "request"
	OpDirection  OpKind = "direction_output"
	OpSet        OpKind = "set"
	OpSleep      OpKind = "sleep"
	OpRegGet     OpKind = "regulator_get"
	OpSetVoltage OpKind = "set_voltage"
	OpEnable     OpKind = "enable"
	OpDisable    OpKind = "disable"
	OpPut        OpKind = "put"
	OpClock      OpKind = "clock"
	OpCSI        OpKind = "csi"
)

// Op is one recorded call.
type Op struct {
	Kind   OpKind
	Target string // line name, pin, supply or channel
	Level  line.Level
	Value  int64 // microvolts, kHz, nanoseconds or enable flag
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%s,%s,%d)", o.Kind, o.Target, o.Level, o.Value)
}

// Bench is a thread-safe simulated board.
type Bench struct {
	mu        sync.Mutex
	named     map[string]bool
	levels    map[string]line.Level
	trace     []Op
	fail      map[OpKind]error
	failPin   map[int]error
	clocks    map[int]uint32
	links     map[csi.Port]bool
	railOn    map[string]bool
	realSleep bool
}

// NewBench returns a bench whose registry knows none of the given names, so
// every lookup falls back to numbered pins.
func NewBench() *Bench {
	return &Bench{
		named:     make(map[string]bool),
		levels:    make(map[string]line.Level),
		fail:      make(map[OpKind]error),
		failPin:   make(map[int]error),
		clocks:    make(map[int]uint32),
		links:     make(map[csi.Port]bool),
		railOn:    make(map[string]bool),
		realSleep: true,
	}
}

// NewBenchWithLines returns a bench whose registry describes names.
func NewBenchWithLines(names ...string) *Bench {
	b := NewBench()
	for _, n := range names {
		b.named[n] = true
	}
	return b
}

// SetFail makes every subsequent op of kind return err (nil clears it).
func (b *Bench) SetFail(kind OpKind, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, kind)
		return
	}
	b.fail[kind] = err
}

// SetFailPin makes raw requests for pin fail with err.
func (b *Bench) SetFailPin(pin int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failPin, pin)
		return
	}
	b.failPin[pin] = err
}

// SetRealSleep selects whether Sleep actually blocks (default true).
func (b *Bench) SetRealSleep(block bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realSleep = block
}

func (b *Bench) record(op Op) error {
	b.trace = append(b.trace, op)
	return b.fail[op.Kind]
}

// Trace returns a copy of every recorded op.
func (b *Bench) Trace() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Op, len(b.trace))
	copy(out, b.trace)
	return out
}

// Count returns how many ops of kind were recorded.
func (b *Bench) Count(kind OpKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, op := range b.trace {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// ClearTrace drops the recorded ops.
func (b *Bench) ClearTrace() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trace = nil
}

// Level returns the level last driven on a line (by name or pin number).
func (b *Bench) Level(target string) (line.Level, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.levels[target]
	return l, ok
}

// ClockKHz returns the frequency last set on channel.
func (b *Bench) ClockKHz(channel int) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clocks[channel]
}

// LinkUp reports whether port was last configured up.
func (b *Bench) LinkUp(port csi.Port) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.links[port]
}

// RailOn reports whether the supply is enabled.
func (b *Bench) RailOn(supply string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.railOn[supply]
}

// Sleep records the settle delay and blocks unless real sleeping is off.
func (b *Bench) Sleep(d time.Duration) {
	b.mu.Lock()
	b.trace = append(b.trace, Op{Kind: OpSleep, Value: int64(d)})
	block := b.realSleep
	b.mu.Unlock()
	if block {
		time.Sleep(d)
	}
}

// --- line.Registry / line.Raw ---

type benchLine struct {
	b    *Bench
	name string
}

func (l benchLine) DirectionOutput(lvl line.Level) error {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if err := l.b.record(Op{Kind: OpDirection, Target: l.name, Level: lvl}); err != nil {
		return err
	}
	l.b.levels[l.name] = lvl
	return nil
}

func (l benchLine) Set(lvl line.Level) error {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if err := l.b.record(Op{Kind: OpSet, Target: l.name, Level: lvl}); err != nil {
		return err
	}
	l.b.levels[l.name] = lvl
	return nil
}

func (l benchLine) String() string { return l.name }

func (b *Bench) Lookup(peripheral int, name string) (line.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Op{Kind: OpLookup, Target: name, Value: int64(peripheral)}); err != nil {
		return nil, err
	}
	if !b.named[name] {
		return nil, fmt.Errorf("%w: %q", line.ErrNotFound, name)
	}
	b.levels[name] = line.Low
	return benchLine{b: b, name: name}, nil
}

func (b *Bench) Request(pin int, owner string) (line.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := fmt.Sprint(pin)
	if err := b.record(Op{Kind: OpRequest, Target: target}); err != nil {
		return nil, err
	}
	if err := b.failPin[pin]; err != nil {
		return nil, err
	}
	return benchLine{b: b, name: target}, nil
}

// --- regulator.Provider ---

type benchSupply struct {
	b    *Bench
	name string
}

func (b *Bench) Get(device, supply string) (regulator.Supply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Op{Kind: OpRegGet, Target: supply}); err != nil {
		return nil, err
	}
	return &benchSupply{b: b, name: supply}, nil
}

func (s *benchSupply) SetVoltage(minUV, maxUV int) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if minUV != maxUV {
		return fmt.Errorf("bench: voltage range %d-%d not supported", minUV, maxUV)
	}
	return s.b.record(Op{Kind: OpSetVoltage, Target: s.name, Value: int64(minUV)})
}

func (s *benchSupply) Enable() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.record(Op{Kind: OpEnable, Target: s.name}); err != nil {
		return err
	}
	s.b.railOn[s.name] = true
	return nil
}

func (s *benchSupply) Disable() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if err := s.b.record(Op{Kind: OpDisable, Target: s.name}); err != nil {
		return err
	}
	s.b.railOn[s.name] = false
	return nil
}

func (s *benchSupply) Put() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	_ = s.b.record(Op{Kind: OpPut, Target: s.name})
}

// --- clock.Subsystem ---

func (b *Bench) SetClockKHz(channel int, khz uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record(Op{Kind: OpClock, Target: fmt.Sprint(channel), Value: int64(khz)}); err != nil {
		return err
	}
	b.clocks[channel] = khz
	return nil
}

// --- csi.Subsystem ---

func (b *Bench) ConfigureLink(ctx context.Context, cfg csi.LinkConfig, enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var v int64
	if enable {
		v = 1
	}
	if err := b.record(Op{Kind: OpCSI, Target: cfg.Port.String(), Value: v}); err != nil {
		return err
	}
	b.links[cfg.Port] = enable
	return nil
}

var (
	_ line.Registry      = (*Bench)(nil)
	_ line.Raw           = (*Bench)(nil)
	_ regulator.Provider = (*Bench)(nil)
)
