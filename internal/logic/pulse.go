package logic

import (
	"sync/atomic"
	"time"
)

// Geometry converts encoder edges into shaft and needle motion.
type Geometry struct {
	EdgesPerRev float64 // encoder edges per motor shaft revolution
	GearRatio   float64 // motor revolutions per output revolution
	PitchMM     float64 // linear travel per output revolution
}

// DefaultGeometry is the geared DC motor and lead screw fitted to the instrument.
var DefaultGeometry = Geometry{
	EdgesPerRev: 12.0,
	GearRatio:   34.014,
	PitchMM:     0.5,
}

// Revolutions converts a net edge count into output revolutions.
func (g Geometry) Revolutions(count int64) float64 {
	return float64(count) / g.EdgesPerRev / g.GearRatio
}

// Displacement converts a net edge count into linear travel in millimetres.
func (g Geometry) Displacement(count int64) float64 {
	return g.Revolutions(count) * g.PitchMM
}

// PulseCounter accumulates directional motor feedback edges.
//
// Edge is called from the GPIO event goroutine and only touches atomics.
// Update, Metrics and Zero belong to the control loop.
type PulseCounter struct {
	count  atomic.Int64
	window atomic.Uint32

	geometry    Geometry
	windowLen   time.Duration
	windowStart time.Time
	rpm         float64
}

// NewPulseCounter creates a counter whose first RPM window opens at start.
func NewPulseCounter(g Geometry, window time.Duration, start time.Time) *PulseCounter {
	return &PulseCounter{
		geometry:    g,
		windowLen:   window,
		windowStart: start,
	}
}

// Edge records one feedback edge. reverse is the direction level sampled
// alongside the edge; a low (reverse) level decrements the count.
func (p *PulseCounter) Edge(reverse bool) {
	p.window.Add(1)
	if reverse {
		p.count.Add(-1)
	} else {
		p.count.Add(1)
	}
}

// Count returns the net edge count since the last Zero.
func (p *PulseCounter) Count() int64 {
	return p.count.Load()
}

// Zero resets the position origin. The RPM window is left alone.
func (p *PulseCounter) Zero() {
	p.count.Store(0)
}

// Update closes the RPM window if it has elapsed and returns current metrics.
// Between windows the last RPM value is held.
func (p *PulseCounter) Update(now time.Time) Metrics {
	if now.Sub(p.windowStart) >= p.windowLen {
		pulses := p.window.Swap(0)
		revs := float64(pulses) / p.geometry.EdgesPerRev / p.geometry.GearRatio
		p.rpm = revs * 60.0 / p.windowLen.Seconds()
		p.windowStart = now
	}
	return p.Metrics()
}

// Metrics returns the motion estimates without touching the RPM window.
func (p *PulseCounter) Metrics() Metrics {
	c := p.Count()
	return Metrics{
		Count:          c,
		Revolutions:    p.geometry.Revolutions(c),
		DisplacementMM: p.geometry.Displacement(c),
		RPM:            p.rpm,
	}
}
