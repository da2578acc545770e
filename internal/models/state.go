// Package models defines the data structures exchanged over the campower API
// and event bus.
package models

// LineStatus is the state of one control line.
type LineStatus struct {
	Line     string `json:"line"`             // "reset" | "power_down" | "power_enable"
	Resolved bool   `json:"resolved"`
	Source   string `json:"source,omitempty"` // "registry" | "fallback"
	Handle   string `json:"handle,omitempty"`
	Pin      *int   `json:"pin,omitempty"`   // fallback pin, when used
	Level    *bool  `json:"level,omitempty"` // last driven level; nil until driven
	Fault    string `json:"fault,omitempty"`
}

// LinkStatus describes the sensor's CSI link.
type LinkStatus struct {
	Port   string `json:"port"`
	Lanes  int    `json:"lanes"`
	Format string `json:"format"`
	Bayer  string `json:"bayer"`
	Up     bool   `json:"up"`
}

// SensorStatus is a snapshot of one attached sensor.
type SensorStatus struct {
	Name        string       `json:"name"`
	Peripheral  int          `json:"peripheral"`
	Attached    bool         `json:"attached"`
	Bound       bool         `json:"regulator_bound"`
	Supply      string       `json:"supply"`
	Microvolts  int          `json:"microvolts"`
	RailEnabled bool         `json:"rail_enabled"`
	ClockOn     bool         `json:"clock_on"`
	ClockKHz    uint32       `json:"clock_khz"`
	Lines       []LineStatus `json:"lines"`
	Link        LinkStatus   `json:"link"`
	Powered     bool         `json:"powered"` // composite power-up completed
}

// Info is returned by /api/info.
type Info struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Model    string `json:"model"`
	Backend  string `json:"backend"`
	Mock     bool   `json:"mock"`
	Sensors  int    `json:"sensors"`
}

// Event is published on the bus whenever a sensor's state changes.
type Event struct {
	Sensor SensorStatus `json:"sensor"`
	Reason string       `json:"reason"` // e.g. "power_up", "gpio", "reattach"
}
