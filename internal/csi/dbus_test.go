package csi_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-nova/campower/internal/csi"
)

const (
	ispPath  = dbus.ObjectPath("/org/micronova/ISP")
	ispIface = "org.micronova.ISP1"
)

type linkCall struct {
	Port, Format, Bayer uint32
	Lanes               int32
	Enable              bool
}

// fakeISP records ConfigureLink calls made over the bus.
type fakeISP struct {
	mu    sync.Mutex
	calls []linkCall
	fail  bool
}

func (f *fakeISP) ConfigureLink(port uint32, lanes int32, format, bayer uint32, enable bool) *dbus.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return dbus.MakeFailedError(errors.New("isp busy"))
	}
	f.calls = append(f.calls, linkCall{Port: port, Format: format, Bayer: bayer, Lanes: lanes, Enable: enable})
	return nil
}

func (f *fakeISP) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeISP) recorded() []linkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]linkCall(nil), f.calls...)
}

// serveISP exports a fake ISP on the session bus under a name unique to
// this process.
func serveISP(t *testing.T) (*fakeISP, *csi.DBusLink) {
	t.Helper()
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		t.Skipf("session bus unavailable: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	isp := &fakeISP{}
	require.NoError(t, conn.Export(isp, ispPath, ispIface))
	name := fmt.Sprintf("org.micronova.CampowerTest.p%d", os.Getpid())
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	require.NoError(t, err)
	require.Equal(t, dbus.RequestNameReplyPrimaryOwner, reply)

	link := &csi.DBusLink{
		Dest:      name,
		Path:      ispPath,
		Interface: ispIface,
		Connect:   func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
	}
	t.Cleanup(func() { link.Close() })
	return isp, link
}

func TestDBusLink_ForwardsConfiguration(t *testing.T) {
	isp, link := serveISP(t)
	ctx := context.Background()

	require.NoError(t, link.ConfigureLink(ctx, csi.DefaultLink, true))
	require.NoError(t, link.ConfigureLink(ctx, csi.DefaultLink, false))

	want := linkCall{
		Port:   uint32(csi.PortSecondary),
		Format: uint32(csi.FormatRaw10),
		Bayer:  uint32(csi.BayerBGGR),
		Lanes:  1,
	}
	up := want
	up.Enable = true
	assert.Equal(t, []linkCall{up, want}, isp.recorded())
}

func TestDBusLink_ServiceError(t *testing.T) {
	isp, link := serveISP(t)
	isp.setFail(true)

	err := link.ConfigureLink(context.Background(), csi.DefaultLink, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ispIface+".ConfigureLink")
}

func TestDBusLink_ConnectError(t *testing.T) {
	boom := errors.New("no bus")
	link := &csi.DBusLink{
		Dest:      "org.micronova.ISP",
		Path:      ispPath,
		Interface: ispIface,
		Connect:   func() (*dbus.Conn, error) { return nil, boom },
	}
	err := link.ConfigureLink(context.Background(), csi.DefaultLink, true)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, link.Close())
}
