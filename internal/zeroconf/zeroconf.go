// Package zeroconf advertises the campower API as an mDNS/DNS-SD service so
// bench tools can find a board on the LAN.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type registered for the API.
const ServiceType = "_campower._tcp"

// Service manages mDNS service registration.
type Service struct {
	name    string // instance name, normally the hostname
	port    int
	version string
	model   string
	server  *zeroconf.Server
}

// New creates a Service that will advertise port under name.
func New(name string, port int, version, model string) *Service {
	return &Service{
		name:    name,
		port:    port,
		version: version,
		model:   model,
	}
}

// TXT returns the TXT records published with the service.
func (s *Service) TXT() []string {
	return []string{"version=" + s.version, "model=" + s.model, "path=/api"}
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	txt := s.TXT()

	server, err := zeroconf.Register(
		s.name,
		ServiceType,
		"local.",
		s.port,
		txt,
		nil, // all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"type", ServiceType,
		"port", s.port,
		"txt", txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

// UpdateTXT re-registers a running service with new TXT records.
func (s *Service) UpdateTXT(records []string) error {
	if s.server == nil {
		return fmt.Errorf("zeroconf: server not started")
	}
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, records, nil)
	if err != nil {
		return fmt.Errorf("zeroconf re-register: %w", err)
	}
	s.server.Shutdown()
	s.server = server
	slog.Info("zeroconf: TXT records updated", "records", records)
	return nil
}
