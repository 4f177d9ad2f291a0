package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	Next          string       `json:"next"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Readings      ReadingsJSON `json:"readings"`
	Counts        CountsJSON   `json:"counts"`
	LogFile       string       `json:"log_file,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingsJSON is the JSON representation of the last rendered view.
type ReadingsJSON struct {
	CurrentMA      float64 `json:"current_ma"`
	VoltageV       float64 `json:"voltage_v"`
	RPM            float64 `json:"rpm"`
	DisplacementMM float64 `json:"displacement_mm"`
	ForceN         float64 `json:"force_n"`
	BatteryPct     float64 `json:"battery_pct"`
	SpeedPct       float64 `json:"speed_pct"`
}

// CountsJSON is the JSON representation of transition and log counts.
type CountsJSON struct {
	Gestures int `json:"gestures"`
	Holds    int `json:"holds"`
	Travel   int `json:"travel_limits"`
	Stalls   int `json:"stalls"`
	LogFiles int `json:"log_files"`
	LogRows  int `json:"log_rows"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	PollMs      int64   `json:"poll_ms"`
	DebounceMs  int64   `json:"debounce_ms"`
	HoldMs      int64   `json:"hold_ms"`
	ForwardRev  float64 `json:"forward_rev"`
	BackwardRev float64 `json:"backward_rev"`
	StallMA     float64 `json:"stall_ma"`
	LogDir      string  `json:"log_dir"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}
	next := string(snap.Next)
	if next == "" {
		next = "UNKNOWN"
	}

	v := snap.View
	return StatusInner{
		State:         state,
		Next:          next,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Readings: ReadingsJSON{
			CurrentMA:      v.CurrentMA,
			VoltageV:       v.VoltageV,
			RPM:            v.RPM,
			DisplacementMM: v.DisplacementMM,
			ForceN:         v.ForceN,
			BatteryPct:     v.BatteryPct,
			SpeedPct:       v.SpeedPct,
		},
		Counts: CountsJSON{
			Gestures: snap.Counts.Gestures,
			Holds:    snap.Counts.Holds,
			Travel:   snap.Counts.Travel,
			Stalls:   snap.Counts.Stalls,
			LogFiles: snap.Counts.LogFiles,
			LogRows:  snap.Counts.LogRows,
		},
		LogFile: snap.LogPath,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HoldMs:      snap.Config.HoldMs,
			ForwardRev:  snap.Config.ForwardRev,
			BackwardRev: snap.Config.BackwardRev,
			StallMA:     snap.Config.StallMA,
			LogDir:      snap.Config.LogDir,
		},
	}
}

// FormatJSON returns the indented JSON status for the print-state dump.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status for a startup or
// shutdown log line.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
