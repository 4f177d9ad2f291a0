package gpio

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/biopsy-needle/internal/logic"
)

func TestFakeBoardPulsesFollowDirection(t *testing.T) {
	f := NewFakeBoard()

	var fwd, rev int
	require.NoError(t, f.Watch(Handlers{
		Pulse: func(reverse bool) {
			if reverse {
				rev++
			} else {
				fwd++
			}
		},
	}))

	f.Pulses(3)
	require.NoError(t, f.SetMotor(logic.Reverse, 100))
	f.Pulses(5)

	assert.Equal(t, 3, fwd)
	assert.Equal(t, 5, rev)
}

func TestFakeBoardButtons(t *testing.T) {
	f := NewFakeBoard()
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	var presses, releases, aux []time.Time
	require.NoError(t, f.Watch(Handlers{
		PrimaryPress:   func(t time.Time) { presses = append(presses, t) },
		PrimaryRelease: func(t time.Time) { releases = append(releases, t) },
		AuxPress:       func(t time.Time) { aux = append(aux, t) },
	}))

	f.PressPrimary(at)
	held, err := f.PrimaryHeld()
	require.NoError(t, err)
	assert.True(t, held)

	f.ReleasePrimary(at.Add(time.Second))
	held, _ = f.PrimaryHeld()
	assert.False(t, held)

	f.PressAux(at.Add(2 * time.Second))
	held, _ = f.AuxHeld()
	assert.True(t, held)

	assert.Equal(t, []time.Time{at}, presses)
	assert.Equal(t, []time.Time{at.Add(time.Second)}, releases)
	assert.Equal(t, []time.Time{at.Add(2 * time.Second)}, aux)
}

func TestFakeBoardWatchTwice(t *testing.T) {
	f := NewFakeBoard()
	require.NoError(t, f.Watch(Handlers{}))
	assert.Error(t, f.Watch(Handlers{}))
}

func TestFakeBoardErrors(t *testing.T) {
	f := NewFakeBoard()
	f.ReadError = errors.New("simulated error")
	f.MotorError = errors.New("pwm fault")

	_, err := f.PrimaryHeld()
	assert.EqualError(t, err, "simulated error")

	err = f.SetMotor(logic.Forward, 10)
	assert.EqualError(t, err, "pwm fault")
	assert.Equal(t, logic.MotorCommand{Direction: logic.Forward, Power: 10}, f.Last(), "command still recorded")
}

func TestFakeBoardClose(t *testing.T) {
	f := NewFakeBoard()
	assert.False(t, f.Closed)
	require.NoError(t, f.Close())
	assert.True(t, f.Closed)
}
