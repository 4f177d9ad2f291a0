package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 10, DebounceMs: 100, HoldMs: 3000, LogDir: "/mnt/logs"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.PollMs != 10 {
		t.Errorf("Config.PollMs: got %d, want 10", snap.Config.PollMs)
	}
	if snap.Config.LogDir != "/mnt/logs" {
		t.Errorf("Config.LogDir: got %q, want %q", snap.Config.LogDir, "/mnt/logs")
	}
	if snap.State != "" {
		t.Errorf("expected empty State initially, got %q", snap.State)
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(logic.StateCutting, logic.StateRemoval, logic.View{State: logic.StateCutting, RPM: 42})

	snap := tr.Snapshot()
	if snap.State != logic.StateCutting {
		t.Errorf("State: got %q, want CUTTING", snap.State)
	}
	if snap.Next != logic.StateRemoval {
		t.Errorf("Next: got %q, want REMOVAL", snap.Next)
	}
	if snap.View.RPM != 42 {
		t.Errorf("View.RPM: got %v, want 42", snap.View.RPM)
	}
}

func TestAddTransitionCountsByCause(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.AddTransition(logic.Transition{From: logic.StateWait, To: logic.StateStandby, Cause: logic.CauseGesture})
	tr.AddTransition(logic.Transition{From: logic.StateStandby, To: logic.StateCutting, Cause: logic.CauseGesture})
	tr.AddTransition(logic.Transition{From: logic.StateCutting, To: logic.StateRemoval, Cause: logic.CauseTravel})
	tr.AddTransition(logic.Transition{From: logic.StateStandby, To: logic.StateZero, Cause: logic.CauseHold})
	tr.AddTransition(logic.Transition{From: logic.StateZero, To: logic.StateFinish, Cause: logic.CauseStall})

	c := tr.Snapshot().Counts
	if c.Gestures != 2 {
		t.Errorf("Gestures: got %d, want 2", c.Gestures)
	}
	if c.Travel != 1 || c.Holds != 1 || c.Stalls != 1 {
		t.Errorf("Travel/Holds/Stalls: got %d/%d/%d, want 1/1/1", c.Travel, c.Holds, c.Stalls)
	}
}

func TestLogFileAndRows(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetLogFile("/mnt/logs/data0.csv")
	tr.AddLogRow()
	tr.AddLogRow()
	tr.SetLogFile("")

	snap := tr.Snapshot()
	if snap.LogPath != "" {
		t.Errorf("LogPath: got %q, want empty after close", snap.LogPath)
	}
	if snap.Counts.LogFiles != 1 {
		t.Errorf("LogFiles: got %d, want 1", snap.Counts.LogFiles)
	}
	if snap.Counts.LogRows != 2 {
		t.Errorf("LogRows: got %d, want 2", snap.Counts.LogRows)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(logic.StateStandby, logic.StateCutting, logic.View{})

	snap1 := tr.Snapshot()

	tr.Update(logic.StateCutting, logic.StateRemoval, logic.View{})

	if snap1.State != logic.StateStandby {
		t.Error("snapshot should be a copy; State was modified")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tr.Update(logic.StateCutting, logic.StateRemoval, logic.View{})
			tr.AddLogRow()
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	if got := tr.Snapshot().Counts.LogRows; got != 10 {
		t.Errorf("LogRows: got %d, want 10", got)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:     logic.StateStandby,
		Next:      logic.StateCutting,
		View:      logic.View{State: logic.StateStandby, BatteryPct: 80, SpeedPct: 50},
		Counts:    Counts{Gestures: 3, LogFiles: 1, LogRows: 120},
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    Config{PollMs: 10, DebounceMs: 100, HoldMs: 3000, ForwardRev: 50, StallMA: 800},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.State != "STANDBY" {
		t.Errorf("State: got %q, want STANDBY", parsed.Status.State)
	}
	if parsed.Status.Next != "CUTTING" {
		t.Errorf("Next: got %q, want CUTTING", parsed.Status.Next)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.Readings.BatteryPct != 80 {
		t.Errorf("Readings.BatteryPct: got %v, want 80", parsed.Status.Readings.BatteryPct)
	}
	if parsed.Status.Counts.LogRows != 120 {
		t.Errorf("Counts.LogRows: got %d, want 120", parsed.Status.Counts.LogRows)
	}
	if parsed.Status.Config.StallMA != 800 {
		t.Errorf("Config.StallMA: got %v, want 800", parsed.Status.Config.StallMA)
	}
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for dump format, got %q", parsed.Status.Event)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.State != "UNKNOWN" {
		t.Errorf("State: got %q, want UNKNOWN", parsed.Status.State)
	}
	if parsed.Status.Next != "UNKNOWN" {
		t.Errorf("Next: got %q, want UNKNOWN", parsed.Status.Next)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:     logic.StateFinish,
		StartTime: start,
		Now:       start.Add(time.Minute),
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "signal")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "signal" {
		t.Errorf("Reason: got %q, want signal", parsed.Status.Reason)
	}
	if parsed.Status.State != "FINISH" {
		t.Errorf("State: got %q, want FINISH", parsed.Status.State)
	}
}
