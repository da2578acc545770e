package line

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	hostOnce sync.Once
	hostErr  error
)

// InitHost initialises the periph.io host drivers once per process.
func InitHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostErr = fmt.Errorf("line: host init failed: %w", err)
		}
	})
	return hostErr
}

// periphLine adapts a periph.io pin. periph has no separate direction call:
// Out both switches the pin to output and drives the level.
type periphLine struct {
	pin gpio.PinIO
}

func (p periphLine) DirectionOutput(l Level) error {
	if err := p.pin.Out(gpio.Level(l)); err != nil {
		return fmt.Errorf("line: %s: direction output %s: %w", p.pin.Name(), l, err)
	}
	return nil
}

func (p periphLine) Set(l Level) error {
	if err := p.pin.Out(gpio.Level(l)); err != nil {
		return fmt.Errorf("line: %s: set %s: %w", p.pin.Name(), l, err)
	}
	return nil
}

func (p periphLine) String() string { return p.pin.Name() }

// PeriphRegistry looks lines up in the periph.io pin registry by logical
// name. Board-specific names are registered as aliases of real pins.
type PeriphRegistry struct{}

// NewPeriphRegistry registers the board's named lines (logical name to pin
// name, e.g. "camera_1_reset" -> "GPIO17") and returns a registry over them.
func NewPeriphRegistry(aliases map[string]string) (*PeriphRegistry, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	for alias, target := range aliases {
		if err := gpioreg.RegisterAlias(alias, target); err != nil {
			return nil, fmt.Errorf("line: alias %s -> %s: %w", alias, target, err)
		}
		slog.Debug("line: registered board alias", "alias", alias, "pin", target)
	}
	return &PeriphRegistry{}, nil
}

func (PeriphRegistry) Lookup(peripheral int, name string) (Handle, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %q (peripheral %d)", ErrNotFound, name, peripheral)
	}
	h := periphLine{pin: pin}
	if err := h.DirectionOutput(Low); err != nil {
		return nil, err
	}
	return h, nil
}

// PeriphRaw requests lines by their decimal pin number.
type PeriphRaw struct{}

// NewPeriphRaw returns the raw line subsystem backed by periph.io.
func NewPeriphRaw() (*PeriphRaw, error) {
	if err := InitHost(); err != nil {
		return nil, err
	}
	return &PeriphRaw{}, nil
}

func (PeriphRaw) Request(pin int, owner string) (Handle, error) {
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("line: no such pin %d", pin)
	}
	slog.Debug("line: requested raw pin", "pin", pin, "name", p.Name(), "owner", owner)
	return periphLine{pin: p}, nil
}
