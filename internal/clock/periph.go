package clock

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
)

// PeriphOscillator outputs clocks on general-purpose clock pins (for
// example GPCLK0 on GPIO4 of a BCM283x) through periph.io. Channels map to
// pin names. The host drivers must already be initialised.
type PeriphOscillator struct {
	Pins map[int]string
}

func (o PeriphOscillator) SetClockKHz(channel int, khz uint32) error {
	name, ok := o.Pins[channel]
	if !ok {
		return fmt.Errorf("no pin mapped to oscillator channel %d", channel)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return fmt.Errorf("oscillator pin %s not found", name)
	}
	if khz == 0 {
		if err := pin.Halt(); err != nil {
			return fmt.Errorf("%s: halt: %w", name, err)
		}
		return pin.Out(gpio.Low)
	}
	f := physic.Frequency(khz) * physic.KiloHertz
	if err := pin.PWM(gpio.DutyHalf, f); err != nil {
		return fmt.Errorf("%s: output %s: %w", name, f, err)
	}
	return nil
}
