package logic

import (
	"math"
	"time"
)

// NextState returns the state a committed short press advances to.
func NextState(s State) State {
	switch s {
	case StateWait:
		return StateStandby
	case StateStandby:
		return StateCutting
	case StateCutting:
		return StateRemoval
	case StateRemoval:
		return StateExiting
	case StateExiting:
		return StateFinish
	case StateFinish:
		return StateStandby
	case StateZero:
		return StateFinish
	}
	return StateWait
}

// Interlock evaluates the safety check of s against this tick's readings.
// It returns the forced state and cause, or ok=false if nothing fires.
func Interlock(s State, m Metrics, currentMA float64, lim Limits) (to State, cause Cause, ok bool) {
	switch s {
	case StateCutting:
		if m.Revolutions > lim.ForwardRev {
			return StateRemoval, CauseTravel, true
		}
	case StateExiting:
		if m.Revolutions < lim.BackwardRev {
			return StateFinish, CauseTravel, true
		}
	case StateZero:
		if currentMA > lim.StallMA {
			return StateFinish, CauseStall, true
		}
	}
	return "", "", false
}

// NeedsOf returns the sensor reads the tick logic of s consumes.
func NeedsOf(s State) Needs {
	switch s {
	case StateStandby, StateRemoval:
		return Needs{Speed: true, Battery: true}
	case StateCutting, StateExiting:
		return Needs{Force: true}
	case StateWait:
		return Needs{Battery: true}
	}
	return Needs{}
}

// SpeedLevel maps a 0-100 speed percentage onto the PWM duty range.
// The fraction is truncated, so 50% gives 127.
func SpeedLevel(pct float64) uint8 {
	v := math.Trunc(pct / 100 * float64(PowerFull))
	if v < 0 {
		return PowerOff
	}
	if v > float64(PowerFull) {
		return PowerFull
	}
	return uint8(v)
}

// Machine is the needle firing cycle. It owns the current and next state,
// the current filters and the gesture detectors, and returns the side
// effects of each step as an Output.
//
// A tick is two calls: Gesture first, then Tick with the sensors listed by
// Needs(). If Gesture returns a non-zero Settle the caller skips Tick.
type Machine struct {
	cfg Config

	state   State
	next    State
	entered State // state whose entry actions have run

	speed     uint8
	direction Direction

	filters Filters
	gesture *Gesture
	aux     *AuxButton

	start time.Time
}

// NewMachine creates a machine in Wait. start is the zero point of record times.
func NewMachine(cfg Config, start time.Time) *Machine {
	return &Machine{
		cfg:       cfg,
		state:     StateWait,
		next:      NextState(StateWait),
		direction: Forward,
		filters:   NewFilters(cfg.Alpha),
		gesture:   NewGesture(cfg.Debounce, cfg.Hold),
		aux:       NewAuxButton(cfg.Debounce),
		start:     start,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Next returns the state the next committed press will advance to.
func (m *Machine) Next() State { return m.next }

// SpeedLevel returns the PWM duty used while cutting or exiting.
func (m *Machine) SpeedLevel() uint8 { return m.speed }

// Filters returns a copy of the current filter state.
func (m *Machine) Filters() Filters { return m.filters }

// Needs returns the sensor reads the current state consumes.
func (m *Machine) Needs() Needs { return NeedsOf(m.state) }

// Gesture resolves button edges. It runs before pulse metrics and filters
// are updated so the rest of the tick sees its effects.
func (m *Machine) Gesture(in Input) Output {
	var out Output

	if m.aux.Update(in.Time, in.Edges.Aux, in.AuxHeld) {
		if (m.state == StateStandby || m.state == StateFinish) && !in.PrimaryHeld {
			out.Reboot = true
		}
	}

	switch m.gesture.Update(in.Time, in.Edges.Press, in.Edges.Release, in.PrimaryHeld) {
	case GesturePress:
		m.commit(&out, m.next, CauseGesture)
		if m.state == StateCutting {
			out.OpenLog = true
		}
	case GestureHold:
		if m.state != StateStandby && m.state != StateFinish {
			break
		}
		m.commit(&out, StateZero, CauseHold)
		m.enter(&out)
		out.Render = true
		out.View = m.view(in)
		out.Settle = m.cfg.Settle
	}

	return out
}

// Tick runs the entry actions and tick behaviour of the current state,
// then its safety interlock. in.Metrics must already be updated.
func (m *Machine) Tick(in Input) Output {
	var out Output

	if m.entered != m.state {
		m.enter(&out)
	}

	maf := m.filters.MovingAverage(in.CurrentMA)

	switch m.state {
	case StateWait:
		m.next = StateStandby

	case StateStandby, StateRemoval:
		m.speed = SpeedLevel(in.SpeedPct)
		m.filters.Reset()
		if m.state == StateStandby {
			m.next = StateCutting
		} else {
			m.next = StateExiting
		}

	case StateCutting, StateExiting:
		lp := m.filters.LowPass(in.CurrentMA)
		out.Record = &Record{
			State:          m.state,
			TimeMs:         in.Time.Sub(m.start).Milliseconds(),
			CurrentMA:      in.CurrentMA,
			CurrentLP:      lp,
			CurrentMAF:     maf,
			RPM:            in.Metrics.RPM,
			DisplacementMM: in.Metrics.DisplacementMM,
			ForceN:         in.ForceN,
		}
		if m.state == StateCutting {
			m.next = StateRemoval
			m.direction = Forward
		} else {
			m.next = StateFinish
			m.direction = Reverse
		}
		out.Motor = &MotorCommand{Direction: m.direction, Power: m.speed}

	case StateFinish:
		m.next = StateStandby

	case StateZero:
		m.next = StateFinish
	}

	if to, cause, ok := Interlock(m.state, in.Metrics, in.CurrentMA, m.cfg.Limits); ok {
		out.Motor = &MotorCommand{Direction: m.direction, Power: PowerOff}
		if cause == CauseStall {
			out.ResetCount = true
		}
		m.commit(&out, to, cause)
	}

	out.Render = true
	out.View = m.view(in)
	return out
}

func (m *Machine) commit(out *Output, to State, cause Cause) {
	out.Transitions = append(out.Transitions, Transition{From: m.state, To: to, Cause: cause})
	m.state = to
	m.next = NextState(to)
}

// enter runs the entry actions of the current state once.
func (m *Machine) enter(out *Output) {
	m.entered = m.state
	switch m.state {
	case StateWait:
		m.direction = Forward
		out.Motor = &MotorCommand{Direction: Forward, Power: PowerOff}
		out.Export = true
	case StateStandby:
		m.direction = Forward
		out.Motor = &MotorCommand{Direction: Forward, Power: PowerOff}
	case StateRemoval:
		m.direction = Reverse
		out.Motor = &MotorCommand{Direction: Reverse, Power: PowerOff}
	case StateFinish:
		out.Motor = &MotorCommand{Direction: m.direction, Power: PowerOff}
		out.CloseLog = true
		out.Unmount = true
	case StateZero:
		m.direction = Reverse
		out.Motor = &MotorCommand{Direction: Reverse, Power: PowerFull}
	}
}

func (m *Machine) view(in Input) View {
	return View{
		State:          m.state,
		CurrentMA:      in.CurrentMA,
		VoltageV:       in.VoltageV,
		RPM:            in.Metrics.RPM,
		DisplacementMM: in.Metrics.DisplacementMM,
		ForceN:         in.ForceN,
		BatteryPct:     in.BatteryPct,
		SpeedPct:       in.SpeedPct,
	}
}
