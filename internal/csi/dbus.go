package csi

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// DBusLink forwards link configuration to the ISP service on the system bus.
// The service exposes ConfigureLink(port u, lanes i, format u, bayer u,
// enable b) on Interface at Path.
type DBusLink struct {
	Dest      string
	Path      dbus.ObjectPath
	Interface string
	// Connect opens the bus; nil means the system bus.
	Connect func() (*dbus.Conn, error)

	mu   sync.Mutex
	conn *dbus.Conn
}

func (d *DBusLink) connect() (*dbus.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil && d.conn.Connected() {
		return d.conn, nil
	}
	connect := d.Connect
	if connect == nil {
		connect = func() (*dbus.Conn, error) { return dbus.ConnectSystemBus() }
	}
	conn, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}
	d.conn = conn
	return conn, nil
}

func (d *DBusLink) ConfigureLink(ctx context.Context, cfg LinkConfig, enable bool) error {
	conn, err := d.connect()
	if err != nil {
		return err
	}
	obj := conn.Object(d.Dest, d.Path)
	call := obj.CallWithContext(ctx, d.Interface+".ConfigureLink", 0,
		uint32(cfg.Port), int32(cfg.Lanes), uint32(cfg.Format), uint32(cfg.Bayer), enable)
	if call.Err != nil {
		return fmt.Errorf("%s.ConfigureLink: %w", d.Interface, call.Err)
	}
	return nil
}

// Close drops the bus connection.
func (d *DBusLink) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
