package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// FX29 is a compact compression load cell with an I²C bridge output.
type FX29 struct {
	dev i2c.Dev
}

// NewFX29 returns a handle to the load cell at addr.
func NewFX29(bus i2c.Bus, addr uint16) *FX29 {
	return &FX29{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

// Raw requests a measurement and fetches the 14-bit bridge count.
func (f *FX29) Raw() (uint16, error) {
	// A one-byte read is the measurement request; its content is stale.
	var req [1]byte
	if err := f.dev.Tx(nil, req[:]); err != nil {
		return 0, fmt.Errorf("fx29 measurement request: %w", err)
	}

	var buf [2]byte
	if err := f.dev.Tx(nil, buf[:]); err != nil {
		return 0, fmt.Errorf("fx29 data fetch: %w", err)
	}
	return DecodeFX29(buf), nil
}
