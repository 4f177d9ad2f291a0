package logic

import (
	"sync/atomic"
	"time"
)

// GestureKind is the outcome of one press cycle.
type GestureKind int

const (
	GestureNone   GestureKind = iota
	GestureBounce             // press rejected by debounce
	GesturePress              // short press, released before the hold threshold
	GestureHold               // held past the hold threshold
)

func (k GestureKind) String() string {
	switch k {
	case GestureBounce:
		return "bounce"
	case GesturePress:
		return "press"
	case GestureHold:
		return "hold"
	}
	return "none"
}

// Gesture classifies primary button edges into bounce, press, or hold.
// The debounce and hold timers share the press timestamp, so a press cycle
// resolves to at most one of GesturePress and GestureHold.
type Gesture struct {
	debounce time.Duration
	hold     time.Duration

	pending bool // press edge seen, not yet resolved
	pressAt time.Time
	valid   bool // debounce confirmed, waiting for release or hold
}

// NewGesture creates a detector with the given debounce and hold thresholds.
func NewGesture(debounce, hold time.Duration) *Gesture {
	return &Gesture{debounce: debounce, hold: hold}
}

// Update consumes this tick's edges. held is the button level sampled now.
// A pending release is classified by its own timestamp, so a slow tick
// that drains both edges at once still sees how long the button was down.
func (g *Gesture) Update(now time.Time, press, release Edge, held bool) GestureKind {
	if press.Pending {
		g.pending = true
		g.pressAt = press.At
		g.valid = false
	}

	// A release older than the press belongs to an earlier cycle.
	if g.pending && release.Pending && !release.At.Before(g.pressAt) {
		down := release.At.Sub(g.pressAt)
		g.pending = false
		g.valid = false
		switch {
		case down < g.debounce:
			return GestureBounce
		case down < g.hold:
			return GesturePress
		default:
			return GestureHold
		}
	}

	if g.pending && !g.valid && now.Sub(g.pressAt) >= g.debounce {
		if !held {
			g.pending = false
			return GestureBounce
		}
		g.valid = true
	}

	if g.valid && now.Sub(g.pressAt) >= g.hold {
		g.pending = false
		g.valid = false
		return GestureHold
	}

	return GestureNone
}

// ValidPress reports whether a debounced press is waiting for release or hold.
func (g *Gesture) ValidPress() bool {
	return g.valid
}

// AuxButton debounces the secondary button. It has no hold behaviour.
type AuxButton struct {
	debounce time.Duration
	pending  bool
	pressAt  time.Time
}

// NewAuxButton creates a debouncer for the secondary button.
func NewAuxButton(debounce time.Duration) *AuxButton {
	return &AuxButton{debounce: debounce}
}

// Update returns true once per press that is still held after the debounce.
func (a *AuxButton) Update(now time.Time, press Edge, held bool) bool {
	if press.Pending {
		a.pending = true
		a.pressAt = press.At
	}
	if !a.pending || now.Sub(a.pressAt) < a.debounce {
		return false
	}
	a.pending = false
	return held
}

// EdgeLatch is a single-slot flag set from the GPIO event goroutine and
// taken by the control loop. A second edge before Take overwrites the time.
type EdgeLatch struct {
	pending atomic.Bool
	at      atomic.Int64
}

// Set latches an edge observed at t.
func (l *EdgeLatch) Set(t time.Time) {
	l.at.Store(t.UnixNano())
	l.pending.Store(true)
}

// Take clears the latch and returns the edge, if any.
func (l *EdgeLatch) Take() Edge {
	if !l.pending.Swap(false) {
		return Edge{}
	}
	return Edge{Pending: true, At: time.Unix(0, l.at.Load())}
}

// DeviceContext is the state shared between GPIO event handlers and the loop.
// Handlers only write; the loop reads and drains once per tick.
type DeviceContext struct {
	Pulses  *PulseCounter
	Press   EdgeLatch
	Release EdgeLatch
	Aux     EdgeLatch
}

// NewDeviceContext creates a context around a pulse counter.
func NewDeviceContext(pulses *PulseCounter) *DeviceContext {
	return &DeviceContext{Pulses: pulses}
}

// Drain takes all latched button edges.
func (d *DeviceContext) Drain() Edges {
	return Edges{
		Press:   d.Press.Take(),
		Release: d.Release.Take(),
		Aux:     d.Aux.Take(),
	}
}
