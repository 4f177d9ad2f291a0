// Package sensor reads current, force, speed and battery level with hardware
// abstraction. Conversions from raw readings to physical units live here so
// they can be tested without a bus.
package sensor

import (
	"errors"
	"fmt"
)

// ErrNoSamples is returned when an average is requested over zero samples.
var ErrNoSamples = errors.New("sensor: no samples")

// Power is one current/voltage measurement.
type Power struct {
	CurrentMA float64
	VoltageV  float64
}

// Reader is the set of sensor reads the control loop makes. Power and Force
// go to the device; Speed and Battery may return the latest background mean.
type Reader interface {
	// Power reads motor current (mA) and bus voltage (V).
	Power() (Power, error)

	// Force reads the load cell in Newtons.
	Force() (float64, error)

	// Speed reads the potentiometer as 0-100%.
	Speed() (float64, error)

	// Battery reads the battery level as 0-100%.
	Battery() (float64, error)

	// Close releases the sensors.
	Close() error
}

// ForceCal converts FX29 counts into Newtons.
type ForceCal struct {
	Offset        float64 // counts at zero load
	NewtonsPerBit float64
}

// DefaultForceCal is the FX29 datasheet scaling for the fitted range.
var DefaultForceCal = ForceCal{
	Offset:        1000,
	NewtonsPerBit: 0.00794,
}

// DecodeFX29 extracts the 14-bit bridge count from a two-byte data fetch.
// The top two bits of the first byte are status.
func DecodeFX29(b [2]byte) uint16 {
	return uint16(b[0]&0x3F)<<8 | uint16(b[1])
}

// Newtons converts a bridge count into force.
func (c ForceCal) Newtons(raw uint16) float64 {
	return (float64(raw) - c.Offset) * c.NewtonsPerBit
}

// Window is an inclusive range of ADC counts mapped onto 0-100%.
type Window struct {
	Min    float64
	Max    float64
	Offset float64 // added to the averaged count before clamping
}

// Percent maps an averaged count onto 0-100%, clamping to the window.
func (w Window) Percent(count float64) float64 {
	v := count + w.Offset
	if v < w.Min {
		v = w.Min
	}
	if v > w.Max {
		v = w.Max
	}
	return (v - w.Min) * 100 / (w.Max - w.Min)
}

// Counts expressed against a 12-bit, 3.3 V reference.
const (
	adcFullScale = 4095
	adcRefVolts  = 3.3
)

// countsFor returns the 12-bit count for a voltage on the 3.3 V reference.
// The 0.5 rounds to nearest when truncated to an integer count.
func countsFor(volts float64) float64 {
	return float64(int(0.5 + adcFullScale/adcRefVolts*volts))
}

// DefaultSpeedWindow spans the full potentiometer travel.
var DefaultSpeedWindow = Window{Min: 0, Max: adcFullScale}

// DefaultBatteryWindow maps a single Li-ion cell (3.2-4.2 V) seen through
// a 1:2 divider.
var DefaultBatteryWindow = Window{
	Min:    countsFor(3.2 / 2),
	Max:    countsFor(4.2 / 2),
	Offset: -320,
}

// Average reads n samples and returns their mean.
func Average(n int, read func() (float64, error)) (float64, error) {
	if n <= 0 {
		return 0, ErrNoSamples
	}
	var sum float64
	for i := 0; i < n; i++ {
		v, err := read()
		if err != nil {
			return 0, fmt.Errorf("sample %d: %w", i, err)
		}
		sum += v
	}
	return sum / float64(n), nil
}
