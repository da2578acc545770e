// Package csi declares the sensor's serial camera interface link to the
// host image-processing subsystem.
package csi

import (
	"context"
	"fmt"
	"log/slog"
)

// Port is a logical CSI receiver port.
type Port uint8

const (
	PortPrimary Port = iota
	PortSecondary
	PortTertiary
)

func (p Port) String() string {
	switch p {
	case PortPrimary:
		return "primary"
	case PortSecondary:
		return "secondary"
	case PortTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// Format is the pixel format carried on the link.
type Format uint8

const (
	FormatRaw8 Format = iota
	FormatRaw10
	FormatRaw12
)

func (f Format) String() string {
	switch f {
	case FormatRaw8:
		return "raw8"
	case FormatRaw10:
		return "raw10"
	case FormatRaw12:
		return "raw12"
	default:
		return "unknown"
	}
}

// BayerOrder is the colour filter order of the first line.
type BayerOrder uint8

const (
	BayerGRBG BayerOrder = iota
	BayerRGGB
	BayerBGGR
	BayerGBRG
)

func (b BayerOrder) String() string {
	switch b {
	case BayerGRBG:
		return "grbg"
	case BayerRGGB:
		return "rggb"
	case BayerBGGR:
		return "bggr"
	case BayerGBRG:
		return "gbrg"
	default:
		return "unknown"
	}
}

// LinkConfig describes one sensor link.
type LinkConfig struct {
	Port   Port
	Lanes  int
	Format Format
	Bayer  BayerOrder
}

// DefaultLink is the OV9724 link: secondary port, one lane, RAW10, BGGR.
var DefaultLink = LinkConfig{Port: PortSecondary, Lanes: 1, Format: FormatRaw10, Bayer: BayerBGGR}

// Subsystem binds or releases a link on the host side.
type Subsystem interface {
	ConfigureLink(ctx context.Context, cfg LinkConfig, enable bool) error
}

// Configurer issues the fixed link description for one sensor.
type Configurer struct {
	sub  Subsystem
	link LinkConfig
}

// New returns a configurer for link.
func New(sub Subsystem, link LinkConfig) *Configurer {
	return &Configurer{sub: sub, link: link}
}

// Link returns the fixed link description.
func (c *Configurer) Link() LinkConfig { return c.link }

// Configure brings the link up (on) or tears it down.
func (c *Configurer) Configure(ctx context.Context, on bool) error {
	if err := c.sub.ConfigureLink(ctx, c.link, on); err != nil {
		return fmt.Errorf("csi: configure %s port: %w", c.link.Port, err)
	}
	slog.Debug("csi: link configured",
		"port", c.link.Port,
		"lanes", c.link.Lanes,
		"format", c.link.Format,
		"bayer", c.link.Bayer,
		"enable", on)
	return nil
}
