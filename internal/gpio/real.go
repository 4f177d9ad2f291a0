//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"time"

	rpio "github.com/stianeikeland/go-rpio/v4"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// RealBoard drives actual hardware: gpiocdev for lines and edges, rpio for PWM.
type RealBoard struct {
	chip *gpiocdev.Chip
	pins Pins

	dir *gpiocdev.Line
	pwm rpio.Pin

	primary  *gpiocdev.Line
	aux      *gpiocdev.Line
	feedback *gpiocdev.Line
}

// NewRealBoard requests the output lines and configures hardware PWM at pwmHz.
// Input lines are requested by Watch.
func NewRealBoard(chipName string, pins Pins, pwmHz int) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	dir, err := chip.RequestLine(pins.Direction, gpiocdev.AsOutput(int(logic.Forward)))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request DIR pin %d: %w", pins.Direction, err)
	}

	if err := rpio.Open(); err != nil {
		dir.Close()
		chip.Close()
		return nil, fmt.Errorf("open pwm: %w", err)
	}
	pwm := rpio.Pin(pins.PWM)
	pwm.Mode(rpio.Pwm)
	pwm.Freq(pwmHz * PWMWrap)
	pwm.DutyCycle(0, PWMWrap)

	return &RealBoard{
		chip: chip,
		pins: pins,
		dir:  dir,
		pwm:  pwm,
	}, nil
}

// Watch requests the button and feedback lines with edge handlers attached.
func (b *RealBoard) Watch(h Handlers) error {
	if b.primary != nil {
		return errors.New("already watching")
	}

	feedback, err := b.chip.RequestLine(b.pins.Feedback,
		gpiocdev.AsInput, gpiocdev.WithPullUp, gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			lvl, err := b.dir.Value()
			h.Pulse(err == nil && lvl == int(logic.Reverse))
		}))
	if err != nil {
		return fmt.Errorf("request feedback pin %d: %w", b.pins.Feedback, err)
	}

	primary, err := b.chip.RequestLine(b.pins.Primary,
		gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			now := time.Now()
			if evt.Type == gpiocdev.LineEventRisingEdge {
				h.PrimaryPress(now)
			} else {
				h.PrimaryRelease(now)
			}
		}))
	if err != nil {
		feedback.Close()
		return fmt.Errorf("request primary pin %d: %w", b.pins.Primary, err)
	}

	aux, err := b.chip.RequestLine(b.pins.Aux,
		gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			h.AuxPress(time.Now())
		}))
	if err != nil {
		primary.Close()
		feedback.Close()
		return fmt.Errorf("request aux pin %d: %w", b.pins.Aux, err)
	}

	b.feedback = feedback
	b.primary = primary
	b.aux = aux
	return nil
}

// PrimaryHeld reads the primary button level.
func (b *RealBoard) PrimaryHeld() (bool, error) {
	return held(b.primary, "primary")
}

// AuxHeld reads the secondary button level.
func (b *RealBoard) AuxHeld() (bool, error) {
	return held(b.aux, "aux")
}

func held(l *gpiocdev.Line, name string) (bool, error) {
	if l == nil {
		return false, fmt.Errorf("read %s pin: not watching", name)
	}
	v, err := l.Value()
	if err != nil {
		return false, fmt.Errorf("read %s pin: %w", name, err)
	}
	return v == 1, nil
}

// SetMotor drives the direction line, then the duty.
func (b *RealBoard) SetMotor(dir logic.Direction, power uint8) error {
	if err := b.dir.SetValue(int(dir)); err != nil {
		return fmt.Errorf("set DIR: %w", err)
	}
	b.pwm.DutyCycle(uint32(power), PWMWrap)
	return nil
}

// Close stops the motor and releases all lines.
// Inputs are reconfigured with pull-down before closing so the pins are left
// in a safe state for the next boot.
func (b *RealBoard) Close() error {
	b.pwm.DutyCycle(0, PWMWrap)
	err := rpio.Close()

	for _, l := range []*gpiocdev.Line{b.feedback, b.primary, b.aux} {
		if l == nil {
			continue
		}
		err = multierr.Append(err, l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown))
		err = multierr.Append(err, l.Close())
	}
	if b.dir != nil {
		err = multierr.Append(err, b.dir.Close())
	}
	if b.chip != nil {
		err = multierr.Append(err, b.chip.Close())
	}

	if err != nil {
		return fmt.Errorf("close board: %w", err)
	}
	return nil
}
