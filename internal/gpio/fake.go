package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// FakeBoard is a test double that records motor commands and lets tests
// inject edges the way the GPIO event goroutine would.
type FakeBoard struct {
	// Commands contains every SetMotor call in order.
	Commands []logic.MotorCommand

	// Primary and Aux are the button levels returned by the Held methods.
	Primary bool
	Aux     bool

	// ReadError, if set, is returned by PrimaryHeld and AuxHeld.
	ReadError error

	// MotorError, if set, is returned by SetMotor (the command is still recorded).
	MotorError error

	// Closed tracks if Close was called.
	Closed bool

	handlers *Handlers
}

// NewFakeBoard creates a FakeBoard with both buttons up and the motor stopped.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{}
}

// Watch stores the handlers.
func (f *FakeBoard) Watch(h Handlers) error {
	if f.handlers != nil {
		return errors.New("already watching")
	}
	f.handlers = &h
	return nil
}

// PrimaryHeld returns the scripted primary level.
func (f *FakeBoard) PrimaryHeld() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Primary, nil
}

// AuxHeld returns the scripted aux level.
func (f *FakeBoard) AuxHeld() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Aux, nil
}

// SetMotor records the command.
func (f *FakeBoard) SetMotor(dir logic.Direction, power uint8) error {
	f.Commands = append(f.Commands, logic.MotorCommand{Direction: dir, Power: power})
	return f.MotorError
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent motor command, or a stopped forward motor.
func (f *FakeBoard) Last() logic.MotorCommand {
	if len(f.Commands) == 0 {
		return logic.MotorCommand{Direction: logic.Forward}
	}
	return f.Commands[len(f.Commands)-1]
}

// Pulses delivers n feedback edges, sampling direction from the last command.
func (f *FakeBoard) Pulses(n int) {
	reverse := f.Last().Direction == logic.Reverse
	for i := 0; i < n; i++ {
		f.handlers.Pulse(reverse)
	}
}

// PressPrimary puts the primary button down and delivers the edge.
func (f *FakeBoard) PressPrimary(at time.Time) {
	f.Primary = true
	f.handlers.PrimaryPress(at)
}

// ReleasePrimary lets the primary button up and delivers the edge.
func (f *FakeBoard) ReleasePrimary(at time.Time) {
	f.Primary = false
	f.handlers.PrimaryRelease(at)
}

// PressAux puts the aux button down and delivers the edge.
func (f *FakeBoard) PressAux(at time.Time) {
	f.Aux = true
	f.handlers.AuxPress(at)
}

// ReleaseAux lets the aux button up. The aux line has no release edge.
func (f *FakeBoard) ReleaseAux() {
	f.Aux = false
}
