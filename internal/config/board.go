package config

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/micro-nova/campower/internal/csi"
	"github.com/micro-nova/campower/internal/line"
	"github.com/micro-nova/campower/internal/platform"
)

// Line backends.
const (
	BackendPeriph = "periph"
	BackendCdev   = "cdev"
	BackendMock   = "mock"
)

// Board is the on-disk board description.
type Board struct {
	Backend       string            `yaml:"backend"`                  // periph | cdev | mock
	GPIOChip      string            `yaml:"gpiochip,omitempty"`       // cdev raw line chip
	Aliases       map[string]string `yaml:"aliases,omitempty"`        // periph: logical name -> pin name
	RegulatorRoot string            `yaml:"regulator_root,omitempty"` // sysfs consumer directories
	Oscillators   map[int]string    `yaml:"oscillators,omitempty"`    // clock channel -> pin name
	DBus          DBus              `yaml:"dbus"`
	Rate          Rate              `yaml:"rate"`
	Sensors       []Sensor          `yaml:"sensors"`
}

// DBus locates the ISP service that owns CSI links.
type DBus struct {
	Dest      string `yaml:"dest"`
	Path      string `yaml:"path"`
	Interface string `yaml:"interface"`
}

// Rate limits composite power transitions per sensor. A missing per_second
// takes the default; an explicit 0 means unlimited.
type Rate struct {
	PerSecond *float64 `yaml:"per_second,omitempty"`
	Burst     int      `yaml:"burst"`
}

// Limited returns a rate of perSecond transitions with the given burst.
func Limited(perSecond float64, burst int) Rate {
	return Rate{PerSecond: &perSecond, Burst: burst}
}

// Limit converts the rate for golang.org/x/time/rate. Unset or
// non-positive rates are unlimited.
func (r Rate) Limit() rate.Limit {
	if r.PerSecond == nil || *r.PerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(*r.PerSecond)
}

// Sensor is one camera sensor on the board.
type Sensor struct {
	Name         string        `yaml:"name"`
	Peripheral   int           `yaml:"peripheral"`
	Supply       string        `yaml:"supply"`
	Microvolts   int           `yaml:"microvolts"`
	ClockChannel int           `yaml:"clock_channel"`
	ClockKHz     uint32        `yaml:"clock_khz"`
	Settle       time.Duration `yaml:"settle"`
	StrictLines  bool          `yaml:"strict_lines,omitempty"`
	Lines        Lines         `yaml:"lines"`
	Link         Link          `yaml:"link"`
}

// Lines describes the three control lines.
type Lines struct {
	Reset       Line `yaml:"reset"`
	PowerDown   Line `yaml:"power_down"`
	PowerEnable Line `yaml:"power_enable"`
}

// Line is one control line: registry name plus numbered fallback.
type Line struct {
	Name         string `yaml:"name"`
	FallbackPin  int    `yaml:"fallback_pin"`
	Owner        string `yaml:"owner"`
	DefaultLevel string `yaml:"default_level"` // "low" | "high"
}

// Link is the CSI link description.
type Link struct {
	Port   string `yaml:"port"`   // primary | secondary | tertiary
	Lanes  int    `yaml:"lanes"`
	Format string `yaml:"format"` // raw8 | raw10 | raw12
	Bayer  string `yaml:"bayer"`  // grbg | rggb | bggr | gbrg
}

// DefaultSensor returns the OV9724 secondary camera description.
func DefaultSensor() Sensor {
	opts := platform.DefaultOptions()
	return Sensor{
		Name:         "ov9724",
		Peripheral:   -1,
		Supply:       opts.Supply,
		Microvolts:   opts.Microvolts,
		ClockChannel: opts.ClockChannel,
		ClockKHz:     opts.ClockKHz,
		Settle:       opts.Settle,
		Lines: Lines{
			Reset:       lineFromSpec(opts.Lines[line.Reset]),
			PowerDown:   lineFromSpec(opts.Lines[line.PowerDown]),
			PowerEnable: lineFromSpec(opts.Lines[line.PowerEnable]),
		},
		Link: Link{
			Port:   opts.Link.Port.String(),
			Lanes:  opts.Link.Lanes,
			Format: opts.Link.Format.String(),
			Bayer:  opts.Link.Bayer.String(),
		},
	}
}

// Default returns a board with the default sensor on the periph.io backend.
func Default() Board {
	return Board{
		Backend:       BackendPeriph,
		GPIOChip:      "gpiochip0",
		RegulatorRoot: "/sys/devices/platform/campower-regulators",
		Oscillators:   map[int]string{1: "GPIO4"},
		DBus: DBus{
			Dest:      "org.micronova.ISP",
			Path:      "/org/micronova/ISP",
			Interface: "org.micronova.ISP1",
		},
		Rate:    Limited(5, 2),
		Sensors: []Sensor{DefaultSensor()},
	}
}

// DeepCopy returns a copy sharing no maps or slices with b.
func (b Board) DeepCopy() Board {
	cp := b
	if b.Aliases != nil {
		cp.Aliases = make(map[string]string, len(b.Aliases))
		for k, v := range b.Aliases {
			cp.Aliases[k] = v
		}
	}
	if b.Oscillators != nil {
		cp.Oscillators = make(map[int]string, len(b.Oscillators))
		for k, v := range b.Oscillators {
			cp.Oscillators[k] = v
		}
	}
	if b.Rate.PerSecond != nil {
		v := *b.Rate.PerSecond
		cp.Rate.PerSecond = &v
	}
	cp.Sensors = append([]Sensor(nil), b.Sensors...)
	return cp
}

func lineFromSpec(s line.Spec) Line {
	return Line{Name: s.Name, FallbackPin: s.FallbackPin, Owner: s.Owner, DefaultLevel: s.DefaultLevel.String()}
}

func (l Line) spec() (line.Spec, error) {
	var lvl line.Level
	switch strings.ToLower(l.DefaultLevel) {
	case "", "low", "0":
		lvl = line.Low
	case "high", "1":
		lvl = line.High
	default:
		return line.Spec{}, fmt.Errorf("config: line %q: invalid default_level %q", l.Name, l.DefaultLevel)
	}
	if l.FallbackPin < 0 {
		return line.Spec{}, fmt.Errorf("config: line %q: negative fallback_pin", l.Name)
	}
	return line.Spec{Name: l.Name, FallbackPin: l.FallbackPin, Owner: l.Owner, DefaultLevel: lvl}, nil
}

func parsePort(s string) (csi.Port, error) {
	for _, p := range []csi.Port{csi.PortPrimary, csi.PortSecondary, csi.PortTertiary} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("config: invalid csi port %q", s)
}

func parseFormat(s string) (csi.Format, error) {
	for _, f := range []csi.Format{csi.FormatRaw8, csi.FormatRaw10, csi.FormatRaw12} {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("config: invalid csi format %q", s)
}

func parseBayer(s string) (csi.BayerOrder, error) {
	for _, b := range []csi.BayerOrder{csi.BayerGRBG, csi.BayerRGGB, csi.BayerBGGR, csi.BayerGBRG} {
		if strings.EqualFold(s, b.String()) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("config: invalid bayer order %q", s)
}

// Options converts the sensor description into platform options.
func (s Sensor) Options() (platform.Options, error) {
	var opts platform.Options
	var err error
	for l, cfg := range map[line.ControlLine]Line{
		line.Reset:       s.Lines.Reset,
		line.PowerDown:   s.Lines.PowerDown,
		line.PowerEnable: s.Lines.PowerEnable,
	} {
		if opts.Lines[l], err = cfg.spec(); err != nil {
			return platform.Options{}, err
		}
	}
	if opts.Link.Port, err = parsePort(s.Link.Port); err != nil {
		return platform.Options{}, err
	}
	if opts.Link.Format, err = parseFormat(s.Link.Format); err != nil {
		return platform.Options{}, err
	}
	if opts.Link.Bayer, err = parseBayer(s.Link.Bayer); err != nil {
		return platform.Options{}, err
	}
	if s.Link.Lanes < 1 || s.Link.Lanes > 4 {
		return platform.Options{}, fmt.Errorf("config: sensor %q: lanes %d out of range", s.Name, s.Link.Lanes)
	}
	if s.Supply == "" {
		return platform.Options{}, fmt.Errorf("config: sensor %q: missing supply", s.Name)
	}
	opts.Link.Lanes = s.Link.Lanes
	opts.Supply = s.Supply
	opts.Microvolts = s.Microvolts
	opts.ClockChannel = s.ClockChannel
	opts.ClockKHz = s.ClockKHz
	opts.Settle = s.Settle
	opts.StrictLines = s.StrictLines
	return opts, nil
}

// Validate checks the whole board.
func (b *Board) Validate() error {
	switch b.Backend {
	case BackendPeriph, BackendCdev, BackendMock:
	default:
		return fmt.Errorf("config: unknown backend %q", b.Backend)
	}
	seen := make(map[string]bool)
	for _, s := range b.Sensors {
		if s.Name == "" {
			return fmt.Errorf("config: sensor without name")
		}
		if seen[s.Name] {
			return fmt.Errorf("config: duplicate sensor %q", s.Name)
		}
		seen[s.Name] = true
		if _, err := s.Options(); err != nil {
			return err
		}
	}
	return nil
}
