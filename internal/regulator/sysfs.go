//go:build unix

package regulator

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// SysfsProvider drives supplies exposed to userspace by the kernel's
// reg-userspace-consumer ("state") and reg-virt-consumer
// ("min_microvolts"/"max_microvolts") drivers. Each supply lives in its own
// directory under Root, named after the supply.
type SysfsProvider struct {
	Root string
}

type sysfsSupply struct {
	dir   string
	state int
	minUV int
	maxUV int
}

func openAttr(dir, name string) (int, error) {
	path := filepath.Join(dir, name)
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, nil
}

// Get opens the supply's control attributes. The files stay open until Put.
func (p SysfsProvider) Get(device, supply string) (Supply, error) {
	dir := filepath.Join(p.Root, supply)
	s := &sysfsSupply{dir: dir, state: -1, minUV: -1, maxUV: -1}
	var err error
	if s.state, err = openAttr(dir, "state"); err != nil {
		return nil, err
	}
	if s.minUV, err = openAttr(dir, "min_microvolts"); err != nil {
		s.Put()
		return nil, err
	}
	if s.maxUV, err = openAttr(dir, "max_microvolts"); err != nil {
		s.Put()
		return nil, err
	}
	slog.Debug("regulator: sysfs supply opened", "device", device, "dir", dir)
	return s, nil
}

func writeAttr(fd int, val string) error {
	if fd < 0 {
		return errors.New("attribute closed")
	}
	if _, err := unix.Pwrite(fd, []byte(val), 0); err != nil {
		return err
	}
	return nil
}

func (s *sysfsSupply) SetVoltage(minUV, maxUV int) error {
	// Raise the ceiling first so min <= max holds after each write.
	if err := writeAttr(s.maxUV, strconv.Itoa(maxUV)); err != nil {
		return fmt.Errorf("%s max_microvolts: %w", s.dir, err)
	}
	if err := writeAttr(s.minUV, strconv.Itoa(minUV)); err != nil {
		return fmt.Errorf("%s min_microvolts: %w", s.dir, err)
	}
	return nil
}

func (s *sysfsSupply) Enable() error {
	if err := writeAttr(s.state, "enabled"); err != nil {
		return fmt.Errorf("%s state: %w", s.dir, err)
	}
	return nil
}

func (s *sysfsSupply) Disable() error {
	if err := writeAttr(s.state, "disabled"); err != nil {
		return fmt.Errorf("%s state: %w", s.dir, err)
	}
	return nil
}

func (s *sysfsSupply) Put() {
	for _, fd := range []*int{&s.state, &s.minUV, &s.maxUV} {
		if *fd >= 0 {
			unix.Close(*fd)
			*fd = -1
		}
	}
}
