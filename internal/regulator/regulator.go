// Package regulator binds the sensor's voltage rail and toggles it
// idempotently.
package regulator

import (
	"errors"
	"fmt"
	"log/slog"
)

// DefaultMicrovolts is the VPROG1 target voltage for the OV9724.
const DefaultMicrovolts = 2800000

// ErrNotBound is returned when the rail is driven without an acquired supply.
var ErrNotBound = errors.New("regulator: supply not bound")

// Supply is an acquired regulator handle.
type Supply interface {
	SetVoltage(minUV, maxUV int) error
	Enable() error
	Disable() error
	// Put releases the handle.
	Put()
}

// Provider hands out supplies by consumer device and supply name.
type Provider interface {
	Get(device, supply string) (Supply, error)
}

// Binding is one acquired supply set to its target voltage.
type Binding struct {
	Name       string
	Microvolts int

	supply  Supply
	enabled bool
}

// Init acquires the named supply for device and sets it to exactly uV. When
// the voltage cannot be set the handle is released and no binding is
// returned.
func Init(p Provider, device, supply string, uV int) (*Binding, error) {
	s, err := p.Get(device, supply)
	if err != nil {
		slog.Error("regulator: get failed", "device", device, "supply", supply, "err", err)
		return nil, fmt.Errorf("regulator: get %s: %w", supply, err)
	}
	if err := s.SetVoltage(uV, uV); err != nil {
		slog.Error("regulator: voltage set failed", "device", device, "supply", supply, "uV", uV, "err", err)
		s.Put()
		return nil, fmt.Errorf("regulator: set %s to %d uV: %w", supply, uV, err)
	}
	return &Binding{Name: supply, Microvolts: uV, supply: s}, nil
}

// Enabled reports whether the rail is currently on.
func (b *Binding) Enabled() bool { return b.enabled }

// SetPowerRail switches the rail. Redundant requests are no-ops and never
// reach the supply, so its enable count stays balanced. The flag only
// changes when the supply call succeeds.
func (b *Binding) SetPowerRail(on bool) error {
	if b.supply == nil {
		return ErrNotBound
	}
	if on == b.enabled {
		return nil
	}
	if on {
		if err := b.supply.Enable(); err != nil {
			return fmt.Errorf("regulator: enable %s: %w", b.Name, err)
		}
	} else {
		if err := b.supply.Disable(); err != nil {
			return fmt.Errorf("regulator: disable %s: %w", b.Name, err)
		}
	}
	b.enabled = on
	slog.Debug("regulator: rail switched", "supply", b.Name, "on", on)
	return nil
}

// Deinit releases the supply. It does not disable a rail left on.
func (b *Binding) Deinit() {
	if b.supply == nil {
		return
	}
	if b.enabled {
		slog.Warn("regulator: releasing supply while rail is enabled", "supply", b.Name)
	}
	b.supply.Put()
	b.supply = nil
}
