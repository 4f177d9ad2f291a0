// Package gpio provides button, motor feedback and motor drive I/O with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device for lines and
// edge events, and the BCM2835 PWM block for motor duty.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// Handlers receive edge events. They run on the GPIO event goroutine and
// must only latch state; no I/O, logging or blocking.
type Handlers struct {
	// Pulse is called on each motor feedback edge with the direction
	// output level sampled at the same time (low = reverse).
	Pulse func(reverse bool)

	PrimaryPress   func(at time.Time)
	PrimaryRelease func(at time.Time)
	AuxPress       func(at time.Time)
}

// Inputs delivers button and feedback edges and reads button levels.
type Inputs interface {
	// Watch requests the input lines and starts delivering edges to h.
	Watch(h Handlers) error

	// PrimaryHeld reports whether the primary (state) button is down.
	PrimaryHeld() (bool, error)

	// AuxHeld reports whether the secondary (storage) button is down.
	AuxHeld() (bool, error)
}

// Motor drives the DC motor.
type Motor interface {
	// SetMotor sets the direction pin and PWM duty together.
	SetMotor(dir logic.Direction, power uint8) error
}

// Board is the complete I/O surface used by the controller.
type Board interface {
	Inputs
	Motor

	// Close stops the motor and releases all lines.
	Close() error
}

// Pins holds BCM line offsets.
type Pins struct {
	Primary   int // state button, active high with pull-down
	Aux       int // storage button, active high with pull-down
	Feedback  int // motor encoder output, falling edge with pull-up
	Direction int // motor direction output
	PWM       int // motor PWM output, must be a hardware PWM pin
}

// DefaultPins is the wiring of the carrier board.
var DefaultPins = Pins{
	Primary:   23,
	Aux:       24,
	Feedback:  17,
	Direction: 27,
	PWM:       18,
}

// PWMWrap is the duty cycle length; power 0..255 maps directly onto it.
const PWMWrap = 255
