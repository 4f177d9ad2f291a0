// Package logic contains the pure control core of the biopsy needle instrument.
// This package has NO hardware dependencies (no GPIO, I2C, filesystem, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the needle firing cycle state.
type State string

const (
	StateWait    State = "WAIT"
	StateStandby State = "STANDBY"
	StateCutting State = "CUTTING"
	StateRemoval State = "REMOVAL"
	StateExiting State = "EXITING"
	StateFinish  State = "FINISH"
	StateZero    State = "ZERO"
)

// Direction is the level driven onto the motor direction pin.
type Direction int

const (
	Reverse Direction = 0
	Forward Direction = 1
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "reverse"
}

// Motor power levels (PWM duty, 8-bit wrap).
const (
	PowerOff  uint8 = 0
	PowerFull uint8 = 255
)

// MotorCommand is a direction and PWM duty applied together.
type MotorCommand struct {
	Direction Direction
	Power     uint8
}

// Cause explains why a transition happened.
type Cause string

const (
	CauseGesture Cause = "gesture"
	CauseHold    Cause = "hold"
	CauseTravel  Cause = "travel_limit"
	CauseStall   Cause = "stall"
)

// Transition records a change of the current state.
type Transition struct {
	From  State
	To    State
	Cause Cause
}

// Edge is a latched button edge and the time it was observed.
type Edge struct {
	Pending bool
	At      time.Time
}

// Edges is the set of edges drained from the interrupt side in one tick.
type Edges struct {
	Press   Edge // primary button pressed
	Release Edge // primary button released
	Aux     Edge // secondary (storage) button pressed
}

// Metrics are the pulse-derived motion estimates for one tick.
type Metrics struct {
	Count          int64
	Revolutions    float64
	DisplacementMM float64
	RPM            float64
}

// Input is one tick's worth of sampled inputs.
// Sensor fields a state does not need (see Needs) are left zero.
type Input struct {
	Time time.Time

	Edges       Edges
	PrimaryHeld bool
	AuxHeld     bool

	Metrics Metrics

	CurrentMA  float64
	VoltageV   float64
	ForceN     float64
	SpeedPct   float64
	BatteryPct float64
}

// Needs lists the sensor reads a state consumes.
type Needs struct {
	Speed   bool
	Force   bool
	Battery bool
}

// Record is one CSV row, produced while cutting or exiting.
type Record struct {
	State          State
	TimeMs         int64
	CurrentMA      float64
	CurrentLP      float64
	CurrentMAF     float64
	RPM            float64
	DisplacementMM float64
	ForceN         float64
}

// View is what the display shows for the current tick.
type View struct {
	State          State
	CurrentMA      float64
	VoltageV       float64
	RPM            float64
	DisplacementMM float64
	ForceN         float64
	BatteryPct     float64
	SpeedPct       float64
}

// Output lists the side effects requested by the machine for one step.
// The caller executes them in field order: Motor, storage, Record, Render, Settle.
type Output struct {
	Transitions []Transition

	Motor *MotorCommand

	Export     bool // hand the log volume to the USB mass-storage gadget
	OpenLog    bool
	CloseLog   bool
	Unmount    bool
	ResetCount bool
	Reboot     bool

	Record *Record

	Render bool
	View   View

	// Settle is a bounded pause the caller must take before the next tick.
	Settle time.Duration
}

// Limits are the travel and current thresholds enforced every tick.
type Limits struct {
	ForwardRev  float64 // Cutting stops once revolutions exceed this
	BackwardRev float64 // Exiting stops once revolutions drop below this
	StallMA     float64 // Zero completes once current exceeds this
}

// Config parameterises the Machine.
type Config struct {
	Limits   Limits
	Debounce time.Duration
	Hold     time.Duration
	Settle   time.Duration
	Alpha    float64
}

// DefaultConfig returns the instrument's calibrated constants.
func DefaultConfig() Config {
	return Config{
		Limits: Limits{
			ForwardRev:  50,
			BackwardRev: 0,
			StallMA:     800,
		},
		Debounce: 100 * time.Millisecond,
		Hold:     3 * time.Second,
		Settle:   500 * time.Millisecond,
		Alpha:    0.1,
	}
}
