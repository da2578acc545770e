package line

import (
	"fmt"
	"log/slog"

	"github.com/warthog618/go-gpiocdev"
)

// DefaultConsumer labels lines requested through the board registry.
const DefaultConsumer = "campower"

type cdevLine struct {
	l *gpiocdev.Line
}

func levelValue(l Level) int {
	if l {
		return 1
	}
	return 0
}

func (c cdevLine) DirectionOutput(l Level) error {
	if err := c.l.Reconfigure(gpiocdev.AsOutput(levelValue(l))); err != nil {
		return fmt.Errorf("line: %s:%d: direction output %s: %w", c.l.Chip(), c.l.Offset(), l, err)
	}
	return nil
}

func (c cdevLine) Set(l Level) error {
	if err := c.l.SetValue(levelValue(l)); err != nil {
		return fmt.Errorf("line: %s:%d: set %s: %w", c.l.Chip(), c.l.Offset(), l, err)
	}
	return nil
}

func (c cdevLine) Close() error { return c.l.Close() }

func (c cdevLine) String() string { return fmt.Sprintf("%s:%d", c.l.Chip(), c.l.Offset()) }

// CdevRegistry finds named lines through the GPIO character device. Line
// names come from the board's device tree or ACPI description.
type CdevRegistry struct {
	Consumer string
}

func (r CdevRegistry) Lookup(peripheral int, name string) (Handle, error) {
	chip, offset, err := gpiocdev.FindLine(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (peripheral %d): %v", ErrNotFound, name, peripheral, err)
	}
	consumer := r.Consumer
	if consumer == "" {
		consumer = DefaultConsumer
	}
	l, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("line: request %s:%d for %q: %w", chip, offset, name, err)
	}
	slog.Debug("line: found named line", "name", name, "chip", chip, "offset", offset)
	return cdevLine{l: l}, nil
}

// CdevRaw requests numbered lines (offsets) on a single gpiochip.
type CdevRaw struct {
	Chip string // e.g. "gpiochip0"
}

func (r CdevRaw) Request(pin int, owner string) (Handle, error) {
	l, err := gpiocdev.RequestLine(r.Chip, pin, gpiocdev.AsIs, gpiocdev.WithConsumer(owner))
	if err != nil {
		return nil, fmt.Errorf("line: request %s:%d: %w", r.Chip, pin, err)
	}
	return cdevLine{l: l}, nil
}
