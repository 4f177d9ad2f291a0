// Package status provides a thread-safe status tracker for the needle controller.
// It is read by the print-state dump and the startup/shutdown status lines.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

// Config contains controller configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HoldMs      int64
	ForwardRev  float64
	BackwardRev float64
	StallMA     float64
	LogDir      string
}

// Counts tallies transitions by cause and log output.
type Counts struct {
	Gestures int
	Holds    int
	Travel   int
	Stalls   int
	LogFiles int
	LogRows  int
}

// Snapshot is a point-in-time view of controller state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	State     logic.State
	Next      logic.State
	View      logic.View
	Counts    Counts
	LogPath   string
	StartTime time.Time
	Now       time.Time
	Config    Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the current and next state and the last rendered view.
// Called from the controller on every tick.
func (t *Tracker) Update(state, next logic.State, view logic.View) {
	t.mu.Lock()
	t.snap.State = state
	t.snap.Next = next
	t.snap.View = view
	t.mu.Unlock()
}

// AddTransition counts tr by its cause.
func (t *Tracker) AddTransition(tr logic.Transition) {
	t.mu.Lock()
	switch tr.Cause {
	case logic.CauseGesture:
		t.snap.Counts.Gestures++
	case logic.CauseHold:
		t.snap.Counts.Holds++
	case logic.CauseTravel:
		t.snap.Counts.Travel++
	case logic.CauseStall:
		t.snap.Counts.Stalls++
	}
	t.mu.Unlock()
}

// SetLogFile records a newly opened log file. An empty path marks it closed.
func (t *Tracker) SetLogFile(path string) {
	t.mu.Lock()
	t.snap.LogPath = path
	if path != "" {
		t.snap.Counts.LogFiles++
	}
	t.mu.Unlock()
}

// AddLogRow counts one written record.
func (t *Tracker) AddLogRow() {
	t.mu.Lock()
	t.snap.Counts.LogRows++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
