// Package controller owns the attached sensors and runs the composite
// power sequences that a sensor driver performs on open and close.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/micro-nova/campower/internal/config"
	"github.com/micro-nova/campower/internal/events"
	"github.com/micro-nova/campower/internal/models"
	"github.com/micro-nova/campower/internal/platform"
)

// entry is one attached sensor. mu serialises composite sequences so two
// callers cannot interleave power-up and power-down steps.
type entry struct {
	mu      sync.Mutex
	cfg     config.Sensor
	sensor  *platform.Sensor
	limiter *rate.Limiter
	powered bool
}

// Controller is the registry of attached sensors.
type Controller struct {
	mu      sync.RWMutex
	sensors map[string]*entry
	deps    platform.Deps
	rate    config.Rate
	bus     *events.Bus
}

// New attaches every sensor described by board.
func New(board *config.Board, deps platform.Deps, bus *events.Bus) (*Controller, error) {
	c := &Controller{
		sensors: make(map[string]*entry),
		deps:    deps,
		rate:    board.Rate,
		bus:     bus,
	}
	for _, sc := range board.Sensors {
		e, err := c.attach(sc)
		if err != nil {
			c.detachAll()
			return nil, err
		}
		c.sensors[sc.Name] = e
	}
	return c, nil
}

func (c *Controller) attach(sc config.Sensor) (*entry, error) {
	opts, err := sc.Options()
	if err != nil {
		return nil, err
	}
	s, err := platform.Attach(platform.Device{Name: sc.Name, Peripheral: sc.Peripheral}, c.deps, opts)
	if err != nil {
		return nil, fmt.Errorf("controller: attach %s: %w", sc.Name, err)
	}
	return &entry{
		cfg:     sc,
		sensor:  s,
		limiter: rate.NewLimiter(c.rate.Limit(), c.rate.Burst),
	}, nil
}

func (c *Controller) detachAll() {
	for name, e := range c.sensors {
		e.mu.Lock()
		e.sensor.Detach()
		e.mu.Unlock()
		delete(c.sensors, name)
	}
}

func (c *Controller) lookup(name string) (*entry, *models.AppError) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.sensors[name]
	if !ok {
		return nil, models.ErrNotFound("sensor " + name + " not found")
	}
	return e, nil
}

func (e *entry) status() models.SensorStatus {
	st := e.sensor.Status()
	st.Powered = e.powered
	return st
}

func (c *Controller) publish(e *entry, reason string) models.SensorStatus {
	st := e.status()
	if c.bus != nil {
		c.bus.Publish(models.Event{Sensor: st, Reason: reason})
	}
	return st
}

// Sensors returns the status of every sensor, sorted by name.
func (c *Controller) Sensors() []models.SensorStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.SensorStatus, 0, len(c.sensors))
	for _, e := range c.sensors {
		e.mu.Lock()
		out = append(out, e.status())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sensor returns the status of one sensor.
func (c *Controller) Sensor(name string) (models.SensorStatus, *models.AppError) {
	e, appErr := c.lookup(name)
	if appErr != nil {
		return models.SensorStatus{}, appErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status(), nil
}

func (c *Controller) throttle(name string, e *entry) *models.AppError {
	if !e.limiter.Allow() {
		return models.ErrTooManyRequests("sensor " + name + ": power transitions too frequent")
	}
	return nil
}

// PowerUp brings the sensor up: rail, control lines (including the settle
// delay), clock, and on the first power-up of an attach cycle the CSI link.
// The first failing step aborts the sequence.
func (c *Controller) PowerUp(ctx context.Context, name string) (models.SensorStatus, *models.AppError) {
	e, appErr := c.lookup(name)
	if appErr != nil {
		return models.SensorStatus{}, appErr
	}
	if appErr := c.throttle(name, e); appErr != nil {
		return models.SensorStatus{}, appErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.powerUp(ctx); err != nil {
		slog.Error("controller: power up failed", "sensor", name, "err", err)
		c.publish(e, "power_up_failed")
		return models.SensorStatus{}, models.ErrHardware(err)
	}
	slog.Info("controller: sensor powered up", "sensor", name)
	return c.publish(e, "power_up"), nil
}

func (e *entry) powerUp(ctx context.Context) error {
	s := e.sensor
	if err := s.PowerCtrl(true); err != nil {
		return err
	}
	if err := s.GPIOCtrl(true); err != nil {
		return err
	}
	if err := s.FlisClkCtrl(true); err != nil {
		return err
	}
	if !s.Status().Link.Up {
		if err := s.CSICfg(ctx, true); err != nil {
			return err
		}
	}
	e.powered = true
	return nil
}

// PowerDown stops the clock, drops the control lines and switches the rail
// off. Every step is attempted; failures are joined.
func (c *Controller) PowerDown(ctx context.Context, name string) (models.SensorStatus, *models.AppError) {
	e, appErr := c.lookup(name)
	if appErr != nil {
		return models.SensorStatus{}, appErr
	}
	if appErr := c.throttle(name, e); appErr != nil {
		return models.SensorStatus{}, appErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.powerDown(); err != nil {
		slog.Error("controller: power down incomplete", "sensor", name, "err", err)
		c.publish(e, "power_down_failed")
		return models.SensorStatus{}, models.ErrHardware(err)
	}
	slog.Info("controller: sensor powered down", "sensor", name)
	return c.publish(e, "power_down"), nil
}

func (e *entry) powerDown() error {
	s := e.sensor
	err := errors.Join(
		s.FlisClkCtrl(false),
		s.GPIOCtrl(false),
		s.PowerCtrl(false),
	)
	e.powered = false
	return err
}

// live reports whether anything on the sensor may still be driven: a
// completed power-up, or a rail or clock switched on through a single op.
func (e *entry) live() bool {
	if e.powered {
		return true
	}
	st := e.sensor.Status()
	return st.RailEnabled || st.ClockOn
}

// quiesce powers the sensor down and tears its link down before it is
// detached. A new attach cycle binds the rail as off.
func (e *entry) quiesce(ctx context.Context, name string) {
	if e.live() {
		if err := e.powerDown(); err != nil {
			slog.Warn("controller: power down before detach failed", "sensor", name, "err", err)
		}
	}
	if e.sensor.Status().Link.Up {
		if err := e.sensor.CSICfg(ctx, false); err != nil {
			slog.Warn("controller: link teardown failed", "sensor", name, "err", err)
		}
	}
}

// SetOp drives a single platform entry point.
func (c *Controller) SetOp(ctx context.Context, name, op string, on bool) (models.SensorStatus, *models.AppError) {
	if !models.ValidOp(op) {
		return models.SensorStatus{}, models.ErrBadRequest("unknown op " + op)
	}
	e, appErr := c.lookup(name)
	if appErr != nil {
		return models.SensorStatus{}, appErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch op {
	case models.OpGPIO:
		err = e.sensor.GPIOCtrl(on)
	case models.OpClock:
		err = e.sensor.FlisClkCtrl(on)
	case models.OpRail:
		err = e.sensor.PowerCtrl(on)
	case models.OpCSI:
		err = e.sensor.CSICfg(ctx, on)
	}
	if err != nil {
		slog.Warn("controller: op failed", "sensor", name, "op", op, "on", on, "err", err)
		return models.SensorStatus{}, models.ErrHardware(err)
	}
	if !on {
		e.powered = false
	}
	return c.publish(e, op), nil
}

// Reattach starts a new attach cycle for the sensor: a live sensor is
// powered down and its link torn down, the sensor detached, then attached
// again with its lines unresolved.
func (c *Controller) Reattach(ctx context.Context, name string) (models.SensorStatus, *models.AppError) {
	e, appErr := c.lookup(name)
	if appErr != nil {
		return models.SensorStatus{}, appErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.quiesce(ctx, name)
	e.sensor.Detach()
	opts, err := e.cfg.Options()
	if err != nil {
		return models.SensorStatus{}, models.ErrInternal(err.Error())
	}
	s, err := platform.Attach(platform.Device{Name: e.cfg.Name, Peripheral: e.cfg.Peripheral}, c.deps, opts)
	if err != nil {
		return models.SensorStatus{}, models.ErrHardware(err)
	}
	e.sensor = s
	e.powered = false
	return c.publish(e, "reattach"), nil
}

// Reload replaces the attached sensors with those of board. Live sensors are
// powered down first.
func (c *Controller) Reload(ctx context.Context, board *config.Board) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quiesceAll(ctx)
	c.detachAll()
	c.rate = board.Rate
	for _, sc := range board.Sensors {
		e, err := c.attach(sc)
		if err != nil {
			return err
		}
		c.sensors[sc.Name] = e
		c.publish(e, "reload")
	}
	slog.Info("controller: board reloaded", "sensors", len(board.Sensors))
	return nil
}

// Close powers down live sensors, tears down their links and detaches
// everything.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quiesceAll(ctx)
	c.detachAll()
}

func (c *Controller) quiesceAll(ctx context.Context) {
	for name, e := range c.sensors {
		e.mu.Lock()
		e.quiesce(ctx, name)
		e.mu.Unlock()
	}
}
