package controller

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/biopsy-needle/internal/datalog"
	"github.com/sweeney/biopsy-needle/internal/display"
	"github.com/sweeney/biopsy-needle/internal/gpio"
	"github.com/sweeney/biopsy-needle/internal/logic"
	"github.com/sweeney/biopsy-needle/internal/sensor"
	"github.com/sweeney/biopsy-needle/internal/status"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const tick = 10 * time.Millisecond

// edgesPastForward is one edge more than the forward stroke at default geometry.
var edgesPastForward = int(50*logic.DefaultGeometry.EdgesPerRev*logic.DefaultGeometry.GearRatio) + 1

type rig struct {
	t       *testing.T
	now     time.Time
	dir     string
	board   *gpio.FakeBoard
	sensors *sensor.FakeReader
	disp    *display.FakeSink
	sink    *datalog.Sink
	storage *datalog.FakeStorage
	reboot  *datalog.FakeRebooter
	tracker *status.Tracker
	sleeps  []time.Duration
	ctl     *Controller
}

func newRig(t *testing.T, logDir string) *rig {
	t.Helper()
	r := &rig{
		t:       t,
		now:     t0,
		dir:     logDir,
		board:   gpio.NewFakeBoard(),
		sensors: sensor.NewFakeReader(),
		disp:    display.NewFakeSink(),
		sink:    datalog.NewSink(logDir),
		storage: datalog.NewFakeStorage(),
		reboot:  &datalog.FakeRebooter{},
		tracker: status.NewTracker(t0, status.Config{}),
	}
	r.sensors.SpeedPct = 50
	r.sensors.BatteryPct = 90
	r.sensors.CurrentMA = 200

	pulses := logic.NewPulseCounter(logic.DefaultGeometry, time.Second, t0)
	dev := logic.NewDeviceContext(pulses)
	m := logic.NewMachine(logic.DefaultConfig(), t0)
	log := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.InfoLevel)

	r.ctl = New(Deps{
		Board:    r.board,
		Sensors:  r.sensors,
		Display:  r.disp,
		Log:      r.sink,
		Storage:  r.storage,
		Rebooter: r.reboot,
		Tracker:  r.tracker,
		Sleep:    func(d time.Duration) { r.sleeps = append(r.sleeps, d) },
	}, m, dev, log)
	require.NoError(t, r.board.Watch(r.ctl.Handlers()))
	return r
}

func (r *rig) step(n int) {
	for i := 0; i < n; i++ {
		r.now = r.now.Add(tick)
		r.ctl.Tick(r.now)
	}
}

// tap is a 150 ms press followed by a release.
func (r *rig) tap() {
	r.board.PressPrimary(r.now)
	r.step(15)
	r.board.ReleasePrimary(r.now)
	r.step(1)
}

func (r *rig) hold() {
	r.board.PressPrimary(r.now)
	r.step(300)
}

func TestFullCycleLogsOnlyCuttingAndExiting(t *testing.T) {
	r := newRig(t, t.TempDir())

	r.step(1)
	require.Equal(t, logic.StateWait, r.ctl.State())
	assert.Equal(t, []string{"export"}, r.storage.Calls)

	r.tap()
	require.Equal(t, logic.StateStandby, r.ctl.State())
	assert.Equal(t, []string{"export", "mount"}, r.storage.Calls, "leaving wait remounts")

	r.tap()
	require.Equal(t, logic.StateCutting, r.ctl.State())
	assert.Equal(t, logic.MotorCommand{Direction: logic.Forward, Power: 127}, r.board.Last())

	r.step(5)
	r.board.Pulses(edgesPastForward)
	r.step(1)
	require.Equal(t, logic.StateRemoval, r.ctl.State())
	assert.Equal(t, logic.PowerOff, r.board.Last().Power)

	r.step(1)
	assert.Equal(t, logic.MotorCommand{Direction: logic.Reverse, Power: logic.PowerOff}, r.board.Last())

	r.tap()
	require.Equal(t, logic.StateExiting, r.ctl.State())
	assert.Equal(t, logic.MotorCommand{Direction: logic.Reverse, Power: 127}, r.board.Last())

	r.step(3)
	r.board.Pulses(edgesPastForward + 1)
	r.step(1)
	require.Equal(t, logic.StateFinish, r.ctl.State())
	r.step(1)
	assert.Equal(t, "unmount", r.storage.Calls[len(r.storage.Calls)-1])

	r.tap()
	require.Equal(t, logic.StateStandby, r.ctl.State())
	assert.Equal(t, logic.PowerOff, r.board.Last().Power)

	data, err := os.ReadFile(filepath.Join(r.dir, "data0.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Greater(t, len(lines), 1)
	assert.Equal(t, datalog.Header, lines[0])

	var cutting, exiting int
	for _, l := range lines[1:] {
		switch {
		case strings.HasPrefix(l, "CUTTING,"):
			cutting++
		case strings.HasPrefix(l, "EXITING,"):
			exiting++
		default:
			t.Errorf("unexpected row %q", l)
		}
	}
	assert.Greater(t, cutting, 0)
	assert.Greater(t, exiting, 0)

	snap := r.tracker.Snapshot()
	assert.Equal(t, 1, snap.Counts.LogFiles)
	assert.Equal(t, cutting+exiting, snap.Counts.LogRows)
	assert.Equal(t, 2, snap.Counts.Travel)
	assert.Equal(t, 4, snap.Counts.Gestures)
	assert.Empty(t, snap.LogPath)
}

func TestRendersEveryTick(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(7)
	assert.Len(t, r.disp.Views, 7)
	assert.Equal(t, logic.StateWait, r.disp.Last().State)
	assert.Equal(t, 90.0, r.disp.Last().BatteryPct)
}

func TestSensorsSampledByState(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(1)
	assert.Zero(t, r.sensors.Reads["speed"], "wait does not read the potentiometer")
	assert.Equal(t, 1, r.sensors.Reads["battery"])

	r.tap()
	r.sensors.Reads = map[string]int{}
	r.step(2)
	assert.Equal(t, 2, r.sensors.Reads["speed"])
	assert.Zero(t, r.sensors.Reads["force"])

	r.tap()
	r.sensors.Reads = map[string]int{}
	r.step(2)
	assert.Equal(t, 2, r.sensors.Reads["force"])
	assert.Equal(t, 2, r.sensors.Reads["power"])
	assert.Zero(t, r.sensors.Reads["speed"])
}

func TestFailedReadKeepsPreviousValue(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.sensors.CurrentMA = 321
	r.step(1)

	r.sensors.CurrentMA = 999
	r.sensors.PowerError = errors.New("ina219 nack")
	r.step(1)
	assert.Equal(t, 321.0, r.disp.Last().CurrentMA)
}

func TestHoldZeroesAgainstStall(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(1)
	r.tap()
	require.Equal(t, logic.StateStandby, r.ctl.State())

	r.hold()
	require.Equal(t, logic.StateZero, r.ctl.State())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, r.sleeps)
	assert.Equal(t, logic.MotorCommand{Direction: logic.Reverse, Power: logic.PowerFull}, r.board.Last())

	// The eventual release does not advance anything.
	r.board.ReleasePrimary(r.now)
	r.step(1)
	require.Equal(t, logic.StateZero, r.ctl.State())

	r.board.Pulses(100)
	r.step(1)
	require.Equal(t, logic.StateZero, r.ctl.State())

	r.sensors.CurrentMA = 900
	r.step(1)
	require.Equal(t, logic.StateFinish, r.ctl.State())
	assert.Equal(t, logic.PowerOff, r.board.Last().Power)

	r.step(1)
	assert.Equal(t, 0.0, r.disp.Last().DisplacementMM, "count zeroed at the stop")
	assert.Equal(t, 1, r.tracker.Snapshot().Counts.Stalls)
}

func TestAuxReboots(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(1)
	r.tap()

	r.board.PressAux(r.now)
	r.step(11)
	r.board.ReleaseAux()
	assert.Equal(t, 1, r.reboot.Count)
}

func TestAuxIgnoredWhileCutting(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(1)
	r.tap()
	r.tap()
	require.Equal(t, logic.StateCutting, r.ctl.State())

	r.board.PressAux(r.now)
	r.step(11)
	assert.Zero(t, r.reboot.Count)
}

func TestLogOpenFailureDoesNotStopCycle(t *testing.T) {
	r := newRig(t, filepath.Join(t.TempDir(), "missing"))
	r.step(1)
	r.tap()
	r.tap()
	require.Equal(t, logic.StateCutting, r.ctl.State())

	r.step(3)
	r.board.Pulses(edgesPastForward)
	r.step(1)
	assert.Equal(t, logic.StateRemoval, r.ctl.State())
	assert.Zero(t, r.tracker.Snapshot().Counts.LogRows)
}

// A press made while the loop is stuck in a slow sensor read is drained on
// the next tick with the button already up. It must still count.
func TestPressDuringSlowTickAdvances(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(1)
	r.tap()
	require.Equal(t, logic.StateStandby, r.ctl.State())

	tickAt := r.now.Add(tick)
	r.sensors.OnRead = func(name string) {
		if name != "speed" {
			return
		}
		r.sensors.OnRead = nil
		r.board.PressPrimary(tickAt.Add(500 * time.Millisecond))
		r.board.ReleasePrimary(tickAt.Add(650 * time.Millisecond))
	}
	r.step(1)
	require.Equal(t, logic.StateStandby, r.ctl.State())

	r.now = tickAt.Add(2400 * time.Millisecond)
	r.ctl.Tick(r.now)
	assert.Equal(t, logic.StateCutting, r.ctl.State())
	assert.Equal(t, logic.MotorCommand{Direction: logic.Forward, Power: 127}, r.board.Last())
}

func TestBounceDuringSlowTickIgnored(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.step(1)
	r.tap()

	tickAt := r.now.Add(tick)
	r.sensors.OnRead = func(name string) {
		if name != "battery" {
			return
		}
		r.sensors.OnRead = nil
		r.board.PressPrimary(tickAt.Add(300 * time.Millisecond))
		r.board.ReleasePrimary(tickAt.Add(340 * time.Millisecond))
	}
	r.step(1)

	r.now = tickAt.Add(2 * time.Second)
	r.ctl.Tick(r.now)
	r.step(20)
	assert.Equal(t, logic.StateStandby, r.ctl.State())
}

func TestMountFailureSkipsLogFile(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.storage.MountError = errors.New("no medium")
	r.step(1)
	r.tap()
	r.tap()
	require.Equal(t, logic.StateCutting, r.ctl.State())

	r.step(3)
	r.board.Pulses(edgesPastForward)
	r.step(1)
	require.Equal(t, logic.StateRemoval, r.ctl.State())

	entries, err := os.ReadDir(r.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing written under the bare mount point")
	assert.Zero(t, r.tracker.Snapshot().Counts.LogFiles)
	assert.Zero(t, r.tracker.Snapshot().Counts.LogRows)
}

func TestMotorErrorIsLogged(t *testing.T) {
	r := newRig(t, t.TempDir())
	r.board.MotorError = errors.New("pwm busy")
	r.step(1)
	r.tap()
	assert.Equal(t, logic.StateStandby, r.ctl.State())
}
