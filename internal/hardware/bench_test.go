package hardware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/micro-nova/campower/internal/csi"
	"github.com/micro-nova/campower/internal/hardware"
	"github.com/micro-nova/campower/internal/line"
)

func TestBench_LookupMissFallsThrough(t *testing.T) {
	b := hardware.NewBench()
	if _, err := b.Lookup(0, "camera_1_reset"); !errors.Is(err, line.ErrNotFound) {
		t.Errorf("Lookup on empty registry = %v, want ErrNotFound", err)
	}
	if b.Count(hardware.OpLookup) != 1 {
		t.Errorf("lookup not recorded")
	}
}

func TestBench_LineLevels(t *testing.T) {
	b := hardware.NewBenchWithLines("cam_reset")
	h, err := b.Lookup(0, "cam_reset")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if lvl, ok := b.Level("cam_reset"); !ok || lvl != line.Low {
		t.Errorf("registry line level = %v/%v, want low", lvl, ok)
	}
	if err := h.Set(line.High); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if lvl, _ := b.Level("cam_reset"); lvl != line.High {
		t.Errorf("level = %v, want high", lvl)
	}
}

func TestBench_FailInjection(t *testing.T) {
	b := hardware.NewBench()
	boom := errors.New("boom")
	b.SetFailPin(3, boom)
	if _, err := b.Request(3, "vga_ldo_en"); !errors.Is(err, boom) {
		t.Errorf("Request(3) = %v, want boom", err)
	}
	if _, err := b.Request(4, "other"); err != nil {
		t.Errorf("Request(4) = %v, want nil", err)
	}

	b.SetFail(hardware.OpCSI, boom)
	if err := b.ConfigureLink(context.Background(), csi.DefaultLink, true); !errors.Is(err, boom) {
		t.Errorf("ConfigureLink = %v, want boom", err)
	}
	b.SetFail(hardware.OpCSI, nil)
	if err := b.ConfigureLink(context.Background(), csi.DefaultLink, true); err != nil {
		t.Errorf("ConfigureLink after clear = %v", err)
	}
	if !b.LinkUp(csi.PortSecondary) {
		t.Error("link not up")
	}
}

func TestBench_VoltageRangeRejected(t *testing.T) {
	b := hardware.NewBench()
	s, err := b.Get("ov9724", "vprog1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.SetVoltage(2700000, 2900000); err == nil {
		t.Error("SetVoltage accepted a range")
	}
}

func TestBench_Sleep(t *testing.T) {
	b := hardware.NewBench()
	b.SetRealSleep(false)
	start := time.Now()
	b.Sleep(time.Hour)
	if time.Since(start) > time.Second {
		t.Error("Sleep blocked with real sleep off")
	}
	trace := b.Trace()
	if len(trace) != 1 || trace[0].Kind != hardware.OpSleep || trace[0].Value != int64(time.Hour) {
		t.Errorf("trace = %v", trace)
	}
}
