// Package line resolves the sensor's control lines (reset, power-down,
// power-enable) to usable handles. A line is looked up by logical name in the
// board's line registry first; when the board does not describe it, a fixed
// numbered pin is requested from the raw line subsystem instead.
package line

import (
	"errors"
	"fmt"
)

// Level is the logical level driven on a control line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// ControlLine identifies one of the sensor's three control signals.
type ControlLine uint8

const (
	Reset ControlLine = iota
	PowerDown
	PowerEnable

	numLines
)

// All lists the control lines in resolution order.
var All = [numLines]ControlLine{Reset, PowerDown, PowerEnable}

// Valid reports whether c names one of the three control lines.
func (c ControlLine) Valid() bool { return c < numLines }

func (c ControlLine) String() string {
	switch c {
	case Reset:
		return "reset"
	case PowerDown:
		return "power_down"
	case PowerEnable:
		return "power_enable"
	default:
		return fmt.Sprintf("line(%d)", uint8(c))
	}
}

var (
	// ErrNotFound is returned by a Registry that does not know a line name.
	ErrNotFound = errors.New("line: not found in registry")

	// ErrLineAcquisition marks a failed fallback pin request.
	ErrLineAcquisition = errors.New("line: fallback acquisition failed")

	// ErrUnknownLine is returned for a control line outside the table.
	ErrUnknownLine = errors.New("line: unknown control line")
)

// Handle is an acquired control line.
type Handle interface {
	// DirectionOutput (re)configures the line as an output driven to l.
	DirectionOutput(l Level) error
	// Set drives the line to l.
	Set(l Level) error
	String() string
}

// Registry is the board's named line lookup. On success the returned line is
// already configured as an output driven Low.
type Registry interface {
	Lookup(peripheral int, name string) (Handle, error)
}

// Raw requests lines by number, bypassing the board description.
type Raw interface {
	Request(pin int, owner string) (Handle, error)
}

// Spec describes how one control line is found on the board.
type Spec struct {
	Name         string // registry key
	FallbackPin  int
	Owner        string // consumer label used for fallback requests
	DefaultLevel Level  // level driven after a fallback request
}

// Table maps each control line to its board description.
type Table [numLines]Spec

// DefaultTable is the line table of the OV9724 secondary camera on the
// Merrifield VV board.
func DefaultTable() Table {
	return Table{
		Reset:       {Name: "camera_1_reset", FallbackPin: 10, Owner: "cam_1_rst", DefaultLevel: Low},
		PowerDown:   {Name: "camera_1_power_down", FallbackPin: 7, Owner: "cam_pwr_en", DefaultLevel: High},
		PowerEnable: {Name: "camera_1_power_en", FallbackPin: 3, Owner: "vga_ldo_en", DefaultLevel: Low},
	}
}
