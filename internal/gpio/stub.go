//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(chipName string, pins Pins, pwmHz int) (*RealBoard, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Watch is not implemented on non-Linux platforms.
func (b *RealBoard) Watch(h Handlers) error {
	return errors.New("gpio: not supported")
}

// PrimaryHeld is not implemented on non-Linux platforms.
func (b *RealBoard) PrimaryHeld() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// AuxHeld is not implemented on non-Linux platforms.
func (b *RealBoard) AuxHeld() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// SetMotor is not implemented on non-Linux platforms.
func (b *RealBoard) SetMotor(dir logic.Direction, power uint8) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
