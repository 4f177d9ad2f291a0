// Package display renders the machine state on a small monochrome screen.
package display

import (
	"fmt"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// Sink renders one view per tick.
type Sink interface {
	Render(v logic.View) error
	Close() error
}

// Frame is the text content of one screen: a large title and small lines.
type Frame struct {
	Title string
	Lines []string
}

// Equal reports whether two frames draw identically.
func (f Frame) Equal(o Frame) bool {
	if f.Title != o.Title || len(f.Lines) != len(o.Lines) {
		return false
	}
	for i := range f.Lines {
		if f.Lines[i] != o.Lines[i] {
			return false
		}
	}
	return true
}

// Layout returns the state-dependent text for v.
func Layout(v logic.View) Frame {
	f := Frame{Title: string(v.State)}

	switch v.State {
	case logic.StateWait:
		f.Title = "READY"
		f.Lines = []string{
			"USB storage on",
			battery(v),
		}
	case logic.StateStandby:
		f.Lines = []string{
			speed(v),
			battery(v),
			fmt.Sprintf("Voltage: %.2f V", v.VoltageV),
		}
	case logic.StateRemoval:
		f.Lines = []string{
			speed(v),
			battery(v),
		}
	case logic.StateCutting, logic.StateExiting:
		f.Lines = []string{
			fmt.Sprintf("RPM: %.0f", v.RPM),
			fmt.Sprintf("Current: %.0f mA", v.CurrentMA),
			fmt.Sprintf("Disp: %.2f mm", v.DisplacementMM),
			fmt.Sprintf("Force: %.2f N", v.ForceN),
		}
	case logic.StateFinish:
		f.Lines = []string{
			fmt.Sprintf("Disp: %.2f mm", v.DisplacementMM),
			"Press for standby",
		}
	case logic.StateZero:
		f.Lines = []string{
			"Zeroing",
			fmt.Sprintf("Current: %.0f mA", v.CurrentMA),
		}
	}
	return f
}

func speed(v logic.View) string {
	return fmt.Sprintf("Input Speed: %.0f%%", v.SpeedPct)
}

func battery(v logic.View) string {
	return fmt.Sprintf("Battery: %.0f%%", v.BatteryPct)
}

// Nop discards frames. It stands in when no panel is fitted.
type Nop struct{}

// Render discards v.
func (Nop) Render(logic.View) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
