package config

import (
	"log/slog"
	"time"

	"github.com/micro-nova/campower/internal/sequencer"
)

// Settle bounds accepted from a board file (usleep_range window of the sensor).
const (
	minSettle = sequencer.DefaultSettle
	maxSettle = 11 * time.Millisecond
)

// migrateBoard fills in default values for fields that may be missing in
// older or hand-written board files.
func migrateBoard(b *Board) {
	def := Default()
	if b.Backend == "" {
		b.Backend = def.Backend
	}
	if b.Rate.PerSecond == nil || *b.Rate.PerSecond < 0 {
		b.Rate.PerSecond = def.Rate.PerSecond
	}
	if b.Rate.Burst <= 0 {
		b.Rate.Burst = def.Rate.Burst
	}
	if len(b.Oscillators) == 0 {
		b.Oscillators = def.Oscillators
	}
	if b.DBus == (DBus{}) {
		b.DBus = def.DBus
	}

	ds := DefaultSensor()
	for i := range b.Sensors {
		s := &b.Sensors[i]
		if s.Supply == "" {
			s.Supply = ds.Supply
		}
		if s.Microvolts <= 0 {
			s.Microvolts = ds.Microvolts
		}
		if s.ClockChannel == 0 {
			s.ClockChannel = ds.ClockChannel
		}
		if s.ClockKHz == 0 {
			s.ClockKHz = ds.ClockKHz
		}
		if s.Settle < minSettle || s.Settle > maxSettle {
			if s.Settle != 0 {
				slog.Warn("config: settle outside 10-11ms window, using default", "sensor", s.Name, "settle", s.Settle)
			}
			s.Settle = ds.Settle
		}
		fillLine(&s.Lines.Reset, ds.Lines.Reset)
		fillLine(&s.Lines.PowerDown, ds.Lines.PowerDown)
		fillLine(&s.Lines.PowerEnable, ds.Lines.PowerEnable)
		if s.Link.Port == "" {
			s.Link.Port = ds.Link.Port
		}
		if s.Link.Lanes == 0 {
			s.Link.Lanes = ds.Link.Lanes
		}
		if s.Link.Format == "" {
			s.Link.Format = ds.Link.Format
		}
		if s.Link.Bayer == "" {
			s.Link.Bayer = ds.Link.Bayer
		}
	}
}

// fillLine takes the default line wholesale when the file leaves it empty.
func fillLine(l *Line, def Line) {
	if *l == (Line{}) {
		*l = def
		return
	}
	if l.Owner == "" {
		l.Owner = l.Name
	}
}
