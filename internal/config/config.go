// Package config loads the instrument configuration from YAML.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config. Durations are milliseconds in the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/biopsy-needle/internal/datalog"
	"github.com/sweeney/biopsy-needle/internal/gpio"
	"github.com/sweeney/biopsy-needle/internal/logic"
	"github.com/sweeney/biopsy-needle/internal/sensor"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/biopsy-needle.yaml"

// Config is the top-level YAML configuration.
type Config struct {
	Control ControlConfig `yaml:"control"`
	Needle  NeedleConfig  `yaml:"needle"`
	Sensors SensorsConfig `yaml:"sensors"`
	GPIO    GPIOConfig    `yaml:"gpio"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ControlConfig holds loop timing, filter and interlock settings.
type ControlConfig struct {
	PollMS       int     `yaml:"poll_ms"`
	DebounceMS   int     `yaml:"debounce_ms"`
	HoldMS       int     `yaml:"hold_ms"`
	SettleMS     int     `yaml:"settle_ms"`
	BootSettleMS int     `yaml:"boot_settle_ms"`
	RPMWindowMS  int     `yaml:"rpm_window_ms"`
	Alpha        float64 `yaml:"alpha"`
	ForwardRev   float64 `yaml:"forward_rev"`
	BackwardRev  float64 `yaml:"backward_rev"`
	StallMA      float64 `yaml:"stall_ma"`
}

// NeedleConfig describes the drive train from feedback edges to travel.
type NeedleConfig struct {
	EdgesPerRev float64 `yaml:"edges_per_rev"`
	GearRatio   float64 `yaml:"gear_ratio"`
	PitchMM     float64 `yaml:"pitch_mm"`
}

// SensorsConfig holds I²C addresses, ADC channels and calibration.
// Samples is the number of ADC conversions per background mean.
type SensorsConfig struct {
	Bus            string  `yaml:"bus"`
	INA219Addr     uint16  `yaml:"ina219_addr"`
	FX29Addr       uint16  `yaml:"fx29_addr"`
	ADCAddr        uint16  `yaml:"adc_addr"`
	SpeedChannel   int     `yaml:"speed_channel"`
	BatteryChannel int     `yaml:"battery_channel"`
	Samples        int     `yaml:"samples"`
	ForceOffset    float64 `yaml:"force_offset"`
	NewtonsPerBit  float64 `yaml:"newtons_per_bit"`
	SpeedMin       float64 `yaml:"speed_min"`
	SpeedMax       float64 `yaml:"speed_max"`
	BatteryMin     float64 `yaml:"battery_min"`
	BatteryMax     float64 `yaml:"battery_max"`
	BatteryOffset  float64 `yaml:"battery_offset"`
	Display        bool    `yaml:"display"`
}

// GPIOConfig holds the chip name, line offsets and PWM frequency.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	Primary   int    `yaml:"primary"`
	Aux       int    `yaml:"aux"`
	Feedback  int    `yaml:"feedback"`
	Direction int    `yaml:"direction"`
	PWM       int    `yaml:"pwm"`
	PWMHz     int    `yaml:"pwm_hz"`
}

// StorageConfig locates the log volume and the USB gadget LUN file.
type StorageConfig struct {
	LogDir     string `yaml:"log_dir"`
	Device     string `yaml:"device"`
	MountPoint string `yaml:"mount_point"`
	FSType     string `yaml:"fs_type"`
	LUNFile    string `yaml:"lun_file"`
}

// LoggingConfig sets the zerolog level and console output.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Default returns a fully populated Config for the instrument as built.
func Default() Config {
	lc := logic.DefaultConfig()
	sc := sensor.DefaultConfig()
	st := datalog.DefaultStorageConfig()
	return Config{
		Control: ControlConfig{
			PollMS:       10,
			DebounceMS:   int(lc.Debounce / time.Millisecond),
			HoldMS:       int(lc.Hold / time.Millisecond),
			SettleMS:     int(lc.Settle / time.Millisecond),
			BootSettleMS: 500,
			RPMWindowMS:  1000,
			Alpha:        lc.Alpha,
			ForwardRev:   lc.Limits.ForwardRev,
			BackwardRev:  lc.Limits.BackwardRev,
			StallMA:      lc.Limits.StallMA,
		},
		Needle: NeedleConfig{
			EdgesPerRev: logic.DefaultGeometry.EdgesPerRev,
			GearRatio:   logic.DefaultGeometry.GearRatio,
			PitchMM:     logic.DefaultGeometry.PitchMM,
		},
		Sensors: SensorsConfig{
			Bus:            "",
			INA219Addr:     sc.INA219Addr,
			FX29Addr:       sc.FX29Addr,
			ADCAddr:        sc.ADCAddr,
			SpeedChannel:   sc.SpeedChannel,
			BatteryChannel: sc.BatteryChannel,
			Samples:        sc.Samples,
			ForceOffset:    sc.Force.Offset,
			NewtonsPerBit:  sc.Force.NewtonsPerBit,
			SpeedMin:       sc.Speed.Min,
			SpeedMax:       sc.Speed.Max,
			BatteryMin:     sc.Battery.Min,
			BatteryMax:     sc.Battery.Max,
			BatteryOffset:  sc.Battery.Offset,
			Display:        true,
		},
		GPIO: GPIOConfig{
			Chip:      "gpiochip0",
			Primary:   gpio.DefaultPins.Primary,
			Aux:       gpio.DefaultPins.Aux,
			Feedback:  gpio.DefaultPins.Feedback,
			Direction: gpio.DefaultPins.Direction,
			PWM:       gpio.DefaultPins.PWM,
			PWMHz:     1000,
		},
		Storage: StorageConfig{
			LogDir:     st.MountPoint,
			Device:     st.Device,
			MountPoint: st.MountPoint,
			FSType:     st.FSType,
			LUNFile:    st.LUNFile,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: false,
		},
	}
}

// Load reads path on top of Default. A missing file yields the defaults.
// Unknown fields are rejected to catch typos.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return Config{}, errors.New("decode config yaml: unexpected trailing document")
	}
	return cfg, nil
}

// Validate checks config invariants and returns a user-friendly error.
func (c Config) Validate() error {
	ctl := c.Control
	for _, d := range []struct {
		name string
		ms   int
	}{
		{"control.poll_ms", ctl.PollMS},
		{"control.debounce_ms", ctl.DebounceMS},
		{"control.hold_ms", ctl.HoldMS},
		{"control.settle_ms", ctl.SettleMS},
		{"control.rpm_window_ms", ctl.RPMWindowMS},
	} {
		if d.ms <= 0 {
			return fmt.Errorf("%s must be > 0", d.name)
		}
	}
	if ctl.BootSettleMS < 0 {
		return errors.New("control.boot_settle_ms must be >= 0")
	}
	if ctl.HoldMS <= ctl.DebounceMS {
		return errors.New("control.hold_ms must be > control.debounce_ms")
	}
	if ctl.Alpha <= 0 || ctl.Alpha >= 1 {
		return errors.New("control.alpha must be between 0 and 1 (exclusive)")
	}
	if ctl.ForwardRev <= ctl.BackwardRev {
		return errors.New("control.forward_rev must be > control.backward_rev")
	}
	if ctl.StallMA <= 0 {
		return errors.New("control.stall_ma must be > 0")
	}

	n := c.Needle
	if n.EdgesPerRev <= 0 || n.GearRatio <= 0 || n.PitchMM <= 0 {
		return errors.New("needle.edges_per_rev, needle.gear_ratio and needle.pitch_mm must be > 0")
	}

	s := c.Sensors
	if s.Samples <= 0 {
		return errors.New("sensors.samples must be > 0")
	}
	if s.SpeedMin >= s.SpeedMax {
		return errors.New("sensors.speed_min must be < sensors.speed_max")
	}
	if s.BatteryMin >= s.BatteryMax {
		return errors.New("sensors.battery_min must be < sensors.battery_max")
	}
	if s.NewtonsPerBit == 0 {
		return errors.New("sensors.newtons_per_bit must not be zero")
	}

	if c.GPIO.Chip == "" {
		return errors.New("gpio.chip must not be empty")
	}
	if c.GPIO.PWMHz <= 0 {
		return errors.New("gpio.pwm_hz must be > 0")
	}

	if c.Storage.LogDir == "" {
		return errors.New("storage.log_dir must not be empty")
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil || c.Logging.Level == "" {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// Poll returns the tick interval.
func (c Config) Poll() time.Duration { return ms(c.Control.PollMS) }

// BootSettle returns the pause before the first tick.
func (c Config) BootSettle() time.Duration { return ms(c.Control.BootSettleMS) }

// RPMWindow returns the pulse counting window.
func (c Config) RPMWindow() time.Duration { return ms(c.Control.RPMWindowMS) }

// Logic converts the control section into the machine config.
func (c Config) Logic() logic.Config {
	return logic.Config{
		Limits: logic.Limits{
			ForwardRev:  c.Control.ForwardRev,
			BackwardRev: c.Control.BackwardRev,
			StallMA:     c.Control.StallMA,
		},
		Debounce: ms(c.Control.DebounceMS),
		Hold:     ms(c.Control.HoldMS),
		Settle:   ms(c.Control.SettleMS),
		Alpha:    c.Control.Alpha,
	}
}

// Geometry converts the needle section.
func (c Config) Geometry() logic.Geometry {
	return logic.Geometry{
		EdgesPerRev: c.Needle.EdgesPerRev,
		GearRatio:   c.Needle.GearRatio,
		PitchMM:     c.Needle.PitchMM,
	}
}

// SensorConfig converts the sensors section.
func (c Config) SensorConfig() sensor.Config {
	s := c.Sensors
	return sensor.Config{
		INA219Addr:     s.INA219Addr,
		FX29Addr:       s.FX29Addr,
		ADCAddr:        s.ADCAddr,
		SpeedChannel:   s.SpeedChannel,
		BatteryChannel: s.BatteryChannel,
		Samples:        s.Samples,
		Force:          sensor.ForceCal{Offset: s.ForceOffset, NewtonsPerBit: s.NewtonsPerBit},
		Speed:          sensor.Window{Min: s.SpeedMin, Max: s.SpeedMax},
		Battery:        sensor.Window{Min: s.BatteryMin, Max: s.BatteryMax, Offset: s.BatteryOffset},
	}
}

// Pins converts the gpio section.
func (c Config) Pins() gpio.Pins {
	return gpio.Pins{
		Primary:   c.GPIO.Primary,
		Aux:       c.GPIO.Aux,
		Feedback:  c.GPIO.Feedback,
		Direction: c.GPIO.Direction,
		PWM:       c.GPIO.PWM,
	}
}

// StorageConfig converts the storage section.
func (c Config) StorageConfig() datalog.StorageConfig {
	return datalog.StorageConfig{
		Device:     c.Storage.Device,
		MountPoint: c.Storage.MountPoint,
		FSType:     c.Storage.FSType,
		LUNFile:    c.Storage.LUNFile,
	}
}
