package sensor

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/devices/v3/ina219"
	"periph.io/x/host/v3"
)

// Config selects devices and calibration for RealReader.
type Config struct {
	INA219Addr uint16
	FX29Addr   uint16
	ADCAddr    uint16

	SpeedChannel   int // ADS1115 single-ended input for the potentiometer
	BatteryChannel int // ADS1115 single-ended input for the battery divider

	Samples int // ADC samples averaged per published Speed/Battery mean

	Force   ForceCal
	Speed   Window
	Battery Window
}

// DefaultConfig returns the carrier board addresses and calibration.
func DefaultConfig() Config {
	return Config{
		INA219Addr:     0x40,
		FX29Addr:       0x28,
		ADCAddr:        0x48,
		SpeedChannel:   0,
		BatteryChannel: 1,
		Samples:        1000,
		Force:          DefaultForceCal,
		Speed:          DefaultSpeedWindow,
		Battery:        DefaultBatteryWindow,
	}
}

// OpenBus initialises periph host drivers and opens the named I²C bus
// ("" picks the first one).
func OpenBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

var adcChannels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// Sampler input indexes.
const (
	speedInput = iota
	batteryInput
)

// RealReader reads an INA219, an FX29 and two ADS1115 inputs on one bus.
// The ADS1115 inputs are averaged in the background: at 860 SPS a
// 1000-sample mean takes over a second. The bus is owned by the caller.
type RealReader struct {
	cfg Config

	ina   *ina219.Dev
	force *FX29
	speed ads1x15.PinADC
	bat   ads1x15.PinADC
	adc   *Sampler
}

// NewRealReader probes all sensors on bus.
func NewRealReader(bus i2c.Bus, cfg Config) (*RealReader, error) {
	if cfg.SpeedChannel < 0 || cfg.SpeedChannel >= len(adcChannels) ||
		cfg.BatteryChannel < 0 || cfg.BatteryChannel >= len(adcChannels) {
		return nil, fmt.Errorf("adc channel out of range: speed=%d battery=%d", cfg.SpeedChannel, cfg.BatteryChannel)
	}

	ina, err := ina219.New(bus, &ina219.Opts{
		Address:       int(cfg.INA219Addr),
		SenseResistor: 100 * physic.MilliOhm,
		MaxCurrent:    2 * physic.Ampere,
	})
	if err != nil {
		return nil, fmt.Errorf("init ina219: %w", err)
	}

	adc, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: cfg.ADCAddr})
	if err != nil {
		return nil, fmt.Errorf("init ads1115: %w", err)
	}
	speed, err := adc.PinForChannel(adcChannels[cfg.SpeedChannel], 4096*physic.MilliVolt, 860*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("speed channel: %w", err)
	}
	bat, err := adc.PinForChannel(adcChannels[cfg.BatteryChannel], 4096*physic.MilliVolt, 860*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		speed.Halt()
		return nil, fmt.Errorf("battery channel: %w", err)
	}

	r := &RealReader{
		cfg:   cfg,
		ina:   ina,
		force: NewFX29(bus, cfg.FX29Addr),
		speed: speed,
		bat:   bat,
		adc:   NewSampler(cfg.Samples, counts(speed), counts(bat)),
	}
	r.adc.Start()
	return r, nil
}

// WaitReady blocks until the first potentiometer and battery means are in.
func (r *RealReader) WaitReady(timeout time.Duration) error {
	return r.adc.WaitReady(timeout)
}

// Power reads the INA219.
func (r *RealReader) Power() (Power, error) {
	pm, err := r.ina.Sense()
	if err != nil {
		return Power{}, fmt.Errorf("read ina219: %w", err)
	}
	return Power{
		CurrentMA: float64(pm.Current) / float64(physic.MilliAmpere),
		VoltageV:  float64(pm.Voltage) / float64(physic.Volt),
	}, nil
}

// Force reads the FX29 load cell.
func (r *RealReader) Force() (float64, error) {
	raw, err := r.force.Raw()
	if err != nil {
		return 0, err
	}
	return r.cfg.Force.Newtons(raw), nil
}

// Speed returns the latest potentiometer mean as a percentage.
func (r *RealReader) Speed() (float64, error) {
	avg, err := r.adc.Latest(speedInput)
	if err != nil {
		return 0, fmt.Errorf("read speed: %w", err)
	}
	return r.cfg.Speed.Percent(avg), nil
}

// Battery returns the latest battery divider mean as a percentage.
func (r *RealReader) Battery() (float64, error) {
	avg, err := r.adc.Latest(batteryInput)
	if err != nil {
		return 0, fmt.Errorf("read battery: %w", err)
	}
	return r.cfg.Battery.Percent(avg), nil
}

// counts reads a pin and expresses it as a 12-bit, 3.3 V count so the
// calibration windows are independent of the ADC fitted.
func counts(p ads1x15.PinADC) func() (float64, error) {
	return func() (float64, error) {
		s, err := p.Read()
		if err != nil {
			return 0, err
		}
		volts := float64(s.V) / float64(physic.Volt)
		return volts / adcRefVolts * adcFullScale, nil
	}
}

// Close stops the background sampler and halts the ADC inputs.
func (r *RealReader) Close() error {
	r.adc.Stop()
	return multierr.Combine(r.speed.Halt(), r.bat.Halt())
}
