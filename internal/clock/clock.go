// Package clock switches the sensor's external input clock.
package clock

import (
	"fmt"
	"log/slog"
)

// DefaultKHz is the OV9724 MCLK frequency (19.2 MHz).
const DefaultKHz = 19200

// Subsystem outputs a clock of khz on an oscillator channel; 0 disables it.
type Subsystem interface {
	SetClockKHz(channel int, khz uint32) error
}

// Controller drives one oscillator channel at a fixed frequency.
type Controller struct {
	sub     Subsystem
	channel int
	khz     uint32
}

// New returns a controller for channel running at khz when enabled.
func New(sub Subsystem, channel int, khz uint32) *Controller {
	return &Controller{sub: sub, channel: channel, khz: khz}
}

// Channel returns the oscillator channel.
func (c *Controller) Channel() int { return c.channel }

// SetClock enables or disables the clock. Subsystem errors are returned
// without retry.
func (c *Controller) SetClock(on bool) error {
	var khz uint32
	if on {
		khz = c.khz
	}
	if err := c.sub.SetClockKHz(c.channel, khz); err != nil {
		return fmt.Errorf("clock: channel %d at %d kHz: %w", c.channel, khz, err)
	}
	slog.Debug("clock: set", "channel", c.channel, "khz", khz)
	return nil
}
