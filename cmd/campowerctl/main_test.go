package main

import (
	"strings"
	"testing"
)

func TestCheckCommand(t *testing.T) {
	for _, cmd := range []string{"up", "cycle", "status"} {
		if err := checkCommand(cmd); err != nil {
			t.Errorf("checkCommand(%q) = %v, want nil", cmd, err)
		}
	}
	if err := checkCommand("reboot"); err == nil {
		t.Error("checkCommand(reboot) = nil, want error")
	}
}

func TestCheckCommand_DownFailsLoudly(t *testing.T) {
	err := checkCommand("down")
	if err == nil {
		t.Fatal("checkCommand(down) = nil, want error")
	}
	if !strings.Contains(err.Error(), "campowerd") {
		t.Errorf("error %q should point at campowerd", err)
	}
}

func TestRunRejectsUnknownCommandBeforeClaimingHardware(t *testing.T) {
	// A board path that does not exist would otherwise load the default
	// periph board and try to claim real pins.
	err := run("reboot", "", t.TempDir()+"/board.yaml", true, 0)
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("run(reboot) = %v, want unknown command error", err)
	}
}
