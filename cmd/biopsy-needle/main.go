// Command biopsy-needle runs the motorised biopsy needle: button gestures drive
// the firing cycle, the motor is stopped at the travel limits, and each cut is
// logged to a numbered CSV file on the removable log volume.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/sweeney/biopsy-needle/internal/config"
	"github.com/sweeney/biopsy-needle/internal/controller"
	"github.com/sweeney/biopsy-needle/internal/datalog"
	"github.com/sweeney/biopsy-needle/internal/display"
	"github.com/sweeney/biopsy-needle/internal/gpio"
	"github.com/sweeney/biopsy-needle/internal/logic"
	"github.com/sweeney/biopsy-needle/internal/sensor"
	"github.com/sweeney/biopsy-needle/internal/status"
)

var version = "dev"

// adcWarmup bounds the wait for the first potentiometer and battery means.
const adcWarmup = 5 * time.Second

func main() {
	var (
		configPath string
		logLevel   string
		printState bool
	)

	cmd := &cobra.Command{
		Use:   "biopsy-needle",
		Short: "Motorised biopsy needle controller",
		Long: `biopsy-needle drives the needle firing cycle from the state button,
stops the motor at the configured travel limits, zeroes against the hard stop
on a long press, and logs current, RPM, displacement and force while cutting.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger, err := newLogger(cfg.Logging, os.Stderr)
			if err != nil {
				return err
			}
			return run(cfg, logger, printState)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath, "YAML config file (missing file uses defaults)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&printState, "print-state", false, "Read every sensor once, print status JSON and exit")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(lc config.LoggingConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}
	if lc.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		PollMs:      int64(cfg.Control.PollMS),
		DebounceMs:  int64(cfg.Control.DebounceMS),
		HoldMs:      int64(cfg.Control.HoldMS),
		ForwardRev:  cfg.Control.ForwardRev,
		BackwardRev: cfg.Control.BackwardRev,
		StallMA:     cfg.Control.StallMA,
		LogDir:      cfg.Storage.LogDir,
	}
}

func run(cfg config.Config, log zerolog.Logger, printState bool) error {
	// Initialize I²C sensors
	bus, err := sensor.OpenBus(cfg.Sensors.Bus)
	if err != nil {
		return err
	}
	defer bus.Close()

	reader, err := sensor.NewRealReader(bus, cfg.SensorConfig())
	if err != nil {
		return fmt.Errorf("init sensors: %w", err)
	}
	defer reader.Close()

	if err := reader.WaitReady(adcWarmup); err != nil {
		log.Warn().Err(err).Msg("adc readings not ready, speed and battery start at zero")
	}

	// Print state mode
	if printState {
		return printStatus(os.Stdout, reader, cfg, time.Now())
	}

	board, err := gpio.NewRealBoard(cfg.GPIO.Chip, cfg.Pins(), cfg.GPIO.PWMHz)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer board.Close()

	var disp display.Sink = display.Nop{}
	if cfg.Sensors.Display {
		oled, err := display.NewOLED(bus)
		if err != nil {
			log.Warn().Err(err).Msg("display unavailable, continuing without it")
		} else {
			disp = oled
		}
	}
	defer disp.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	log.Info().
		RawJSON("status", status.FormatStatusEvent(tracker.Snapshot(), "STARTUP", "")).
		Msg("started")

	time.Sleep(cfg.BootSettle())

	start := time.Now()
	dev := logic.NewDeviceContext(logic.NewPulseCounter(cfg.Geometry(), cfg.RPMWindow(), start))
	ctl := controller.New(controller.Deps{
		Board:    board,
		Sensors:  reader,
		Display:  disp,
		Log:      datalog.NewSink(cfg.Storage.LogDir),
		Storage:  datalog.NewLinuxStorage(cfg.StorageConfig()),
		Rebooter: datalog.LinuxRebooter{},
		Tracker:  tracker,
	}, logic.NewMachine(cfg.Logic(), start), dev, log)

	if err := board.Watch(ctl.Handlers()); err != nil {
		return fmt.Errorf("watch gpio: %w", err)
	}

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(ctl, tracker, log, time.Now, ticker.C, sigCh)
}

func runLoop(ctl *controller.Controller, tracker *status.Tracker, log zerolog.Logger, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			ctl.Stop()
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			log.Info().
				Str("signal", signalName).
				RawJSON("status", status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", signalName)).
				Msg("shutting down")
			return nil

		case <-tick:
			ctl.Tick(now())
		}
	}
}

// printStatus reads every sensor once and writes the status JSON to w.
// Failed reads are reported after the dump.
func printStatus(w io.Writer, r sensor.Reader, cfg config.Config, now time.Time) error {
	var errs error
	v := logic.View{}

	p, err := r.Power()
	errs = multierr.Append(errs, err)
	v.CurrentMA, v.VoltageV = p.CurrentMA, p.VoltageV

	v.ForceN, err = r.Force()
	errs = multierr.Append(errs, err)
	v.SpeedPct, err = r.Speed()
	errs = multierr.Append(errs, err)
	v.BatteryPct, err = r.Battery()
	errs = multierr.Append(errs, err)

	snap := status.Snapshot{
		View:      v,
		StartTime: now,
		Now:       now,
		Config:    statusConfig(cfg),
	}
	if _, err := fmt.Fprintln(w, string(status.FormatJSON(snap))); err != nil {
		return multierr.Append(errs, err)
	}
	if errs != nil {
		return fmt.Errorf("read sensors: %w", errs)
	}
	return nil
}
