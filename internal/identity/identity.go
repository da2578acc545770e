// Package identity reports who this campower daemon is: host name, software
// version and the board model it runs on.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultVersion is reported when metadata.json is missing or unreadable.
const DefaultVersion = "0.1.0-dev"

// ModelUnknown is reported when the device tree does not name the board.
const ModelUnknown = "unknown"

// dtModelPath is where the kernel exposes the board model string.
var dtModelPath = "/proc/device-tree/model"

// Info holds identity fields published over the API and mDNS.
type Info struct {
	Hostname string
	Version  string
	Model    string
}

// Get gathers identity using configDir for metadata.json.
func Get(configDir string) Info {
	return Info{
		Hostname: GetHostname(),
		Version:  GetVersionFromDir(configDir),
		Model:    GetModel(),
	}
}

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "campower"
	}
	return h
}

// GetVersionFromDir reads "version" from dir/metadata.json.
// If dir is empty, ~/.config/campower is used.
func GetVersionFromDir(dir string) string {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultVersion
		}
		dir = filepath.Join(home, ".config", "campower")
	}

	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return DefaultVersion
	}

	var meta struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.Version == "" {
		return DefaultVersion
	}
	return meta.Version
}

// GetModel returns the device-tree board model, or ModelUnknown.
func GetModel() string {
	return modelFrom(dtModelPath)
}

func modelFrom(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelUnknown
	}
	// device-tree strings are NUL terminated
	m := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
	if m == "" {
		return ModelUnknown
	}
	return m
}
