// Package controller runs the needle machine against real or fake hardware.
// It samples inputs, steps the machine and executes the returned commands.
// Nothing here returns an error from a tick: hardware faults are logged and
// the loop keeps moving.
package controller

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/biopsy-needle/internal/datalog"
	"github.com/sweeney/biopsy-needle/internal/display"
	"github.com/sweeney/biopsy-needle/internal/gpio"
	"github.com/sweeney/biopsy-needle/internal/logic"
	"github.com/sweeney/biopsy-needle/internal/sensor"
	"github.com/sweeney/biopsy-needle/internal/status"
)

// Deps are the collaborators driven by the controller.
type Deps struct {
	Board    gpio.Board
	Sensors  sensor.Reader
	Display  display.Sink
	Log      *datalog.Sink
	Storage  datalog.Storage
	Rebooter datalog.Rebooter
	Tracker  *status.Tracker

	// Sleep takes the settle pause. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Controller executes one machine step per Tick.
type Controller struct {
	d   Deps
	m   *logic.Machine
	dev *logic.DeviceContext

	log  zerolog.Logger
	warn zerolog.Logger // sampled, for faults that repeat every tick

	// last good readings, reused when a read fails
	power   sensor.Power
	force   float64
	speed   float64
	battery float64

	logging bool // a log file is open and accepting rows
}

// New creates a controller for m. dev is shared with the GPIO handlers.
func New(d Deps, m *logic.Machine, dev *logic.DeviceContext, log zerolog.Logger) *Controller {
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	log = log.With().Str("component", "controller").Logger()
	return &Controller{
		d:    d,
		m:    m,
		dev:  dev,
		log:  log,
		warn: log.Sample(&zerolog.BurstSampler{Burst: 1, Period: time.Second}),
	}
}

// Handlers returns GPIO handlers that latch edges into the device context.
func (c *Controller) Handlers() gpio.Handlers {
	return gpio.Handlers{
		Pulse:          c.dev.Pulses.Edge,
		PrimaryPress:   c.dev.Press.Set,
		PrimaryRelease: c.dev.Release.Set,
		AuxPress:       c.dev.Aux.Set,
	}
}

// State returns the machine's current state.
func (c *Controller) State() logic.State { return c.m.State() }

// Tick runs one loop iteration at now: gesture resolution, then pulse
// metrics and sampling, then the state's tick behaviour.
func (c *Controller) Tick(now time.Time) {
	in := logic.Input{
		Time:        now,
		Edges:       c.dev.Drain(),
		PrimaryHeld: c.held("primary", c.d.Board.PrimaryHeld),
		AuxHeld:     c.held("aux", c.d.Board.AuxHeld),
		Metrics:     c.dev.Pulses.Metrics(),
		CurrentMA:   c.power.CurrentMA,
		VoltageV:    c.power.VoltageV,
	}

	out := c.m.Gesture(in)
	c.execute(out)
	if out.Settle > 0 {
		c.log.Debug().Dur("settle", out.Settle).Msg("settling")
		c.d.Sleep(out.Settle)
		return
	}

	in.Metrics = c.dev.Pulses.Update(now)
	c.sample(&in, c.m.Needs())

	out = c.m.Tick(in)
	c.execute(out)

	c.log.Debug().
		Str("state", string(c.m.State())).
		Int64("count", in.Metrics.Count).
		Float64("rev", in.Metrics.Revolutions).
		Float64("rpm", in.Metrics.RPM).
		Float64("current_ma", in.CurrentMA).
		Msg("tick")
}

func (c *Controller) held(name string, read func() (bool, error)) bool {
	v, err := read()
	if err != nil {
		c.warn.Warn().Err(err).Str("button", name).Msg("button read failed")
		return false
	}
	return v
}

// sample reads current and voltage every tick and the other sensors only
// when the state needs them. A failed read keeps the previous value.
func (c *Controller) sample(in *logic.Input, needs logic.Needs) {
	if p, err := c.d.Sensors.Power(); err != nil {
		c.warn.Warn().Err(err).Msg("power read failed")
	} else {
		c.power = p
	}
	in.CurrentMA = c.power.CurrentMA
	in.VoltageV = c.power.VoltageV

	if needs.Force {
		if v, err := c.d.Sensors.Force(); err != nil {
			c.warn.Warn().Err(err).Msg("force read failed")
		} else {
			c.force = v
		}
		in.ForceN = c.force
	}
	if needs.Speed {
		if v, err := c.d.Sensors.Speed(); err != nil {
			c.warn.Warn().Err(err).Msg("speed read failed")
		} else {
			c.speed = v
		}
		in.SpeedPct = c.speed
	}
	if needs.Battery {
		if v, err := c.d.Sensors.Battery(); err != nil {
			c.warn.Warn().Err(err).Msg("battery read failed")
		} else {
			c.battery = v
		}
		in.BatteryPct = c.battery
	}
}

// execute applies out in field order.
func (c *Controller) execute(out logic.Output) {
	for _, tr := range out.Transitions {
		c.log.Info().
			Str("from", string(tr.From)).
			Str("to", string(tr.To)).
			Str("cause", string(tr.Cause)).
			Msg("transition")
		if c.d.Tracker != nil {
			c.d.Tracker.AddTransition(tr)
		}
		if tr.From == logic.StateWait {
			_ = c.mount()
		}
	}

	if out.Motor != nil {
		if err := c.d.Board.SetMotor(out.Motor.Direction, out.Motor.Power); err != nil {
			c.log.Error().Err(err).
				Stringer("dir", out.Motor.Direction).
				Uint8("power", out.Motor.Power).
				Msg("set motor failed")
		}
	}

	if out.Export {
		if err := c.d.Storage.Export(); err != nil {
			c.log.Warn().Err(err).Msg("export storage failed")
		} else {
			c.log.Info().Msg("storage exported over usb")
		}
	}
	if out.OpenLog {
		c.openLog()
	}
	if out.CloseLog {
		c.closeLog()
	}
	if out.Unmount {
		if err := c.d.Storage.Unmount(); err != nil {
			c.log.Warn().Err(err).Msg("unmount storage failed")
		}
	}
	if out.ResetCount {
		c.dev.Pulses.Zero()
		c.log.Info().Msg("pulse count zeroed")
	}
	if out.Reboot {
		c.reboot()
	}

	if out.Record != nil && c.logging {
		if err := c.d.Log.Write(*out.Record); err != nil {
			c.log.Error().Err(err).Msg("write log record failed; logging disabled until next cut")
			c.logging = false
		} else if c.d.Tracker != nil {
			c.d.Tracker.AddLogRow()
		}
	}

	if out.Render {
		if err := c.d.Display.Render(out.View); err != nil {
			c.warn.Warn().Err(err).Msg("render failed")
		}
		if c.d.Tracker != nil {
			c.d.Tracker.Update(c.m.State(), c.m.Next(), out.View)
		}
	}
}

// Stop halts the motor and closes any open log file. Used on shutdown.
func (c *Controller) Stop() {
	if err := c.d.Board.SetMotor(logic.Forward, logic.PowerOff); err != nil {
		c.log.Error().Err(err).Msg("stop motor failed")
	}
	c.closeLog()
}

func (c *Controller) mount() error {
	err := c.d.Storage.Mount()
	if err != nil {
		c.log.Warn().Err(err).Msg("mount storage failed")
	}
	return err
}

// openLog starts a new log file on the mounted volume. Without the volume
// the cut runs unlogged rather than writing under the bare mount point.
func (c *Controller) openLog() {
	c.logging = false
	if err := c.mount(); err != nil {
		c.log.Error().Msg("log volume not mounted; cut will not be logged")
		return
	}
	path, err := c.d.Log.Open()
	if err != nil {
		c.log.Error().Err(err).Msg("open log file failed; cut will not be logged")
		return
	}
	c.logging = true
	c.log.Info().Str("path", path).Msg("log file opened")
	if c.d.Tracker != nil {
		c.d.Tracker.SetLogFile(path)
	}
}

func (c *Controller) closeLog() {
	path := c.d.Log.Path()
	rows := c.d.Log.Rows()
	c.logging = false
	if err := c.d.Log.Close(); err != nil {
		c.log.Error().Err(err).Msg("close log file failed")
	} else if path != "" {
		c.log.Info().Str("path", path).Int("rows", rows).Msg("log file closed")
	}
	if c.d.Tracker != nil {
		c.d.Tracker.SetLogFile("")
	}
}

func (c *Controller) reboot() {
	c.log.Warn().Msg("reboot requested")
	c.Stop()
	if err := c.d.Rebooter.Reboot(); err != nil {
		c.log.Error().Err(err).Msg("reboot failed")
	}
}
