package logic

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRevolutionsIsPureFunctionOfCount(t *testing.T) {
	for _, count := range []int64{0, 1, 12, 408, -408, 20408, -7} {
		want := float64(count) / 12.0 / 34.014
		assert.InDelta(t, want, DefaultGeometry.Revolutions(count), 1e-12, "count %d", count)
		assert.InDelta(t, want*0.5, DefaultGeometry.Displacement(count), 1e-12, "count %d", count)
	}
}

func TestPulseCounterDirection(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewPulseCounter(DefaultGeometry, time.Second, start)

	for i := 0; i < 10; i++ {
		p.Edge(false)
	}
	for i := 0; i < 15; i++ {
		p.Edge(true)
	}

	assert.Equal(t, int64(-5), p.Count(), "count may go negative")
	m := p.Metrics()
	assert.InDelta(t, DefaultGeometry.Revolutions(-5), m.Revolutions, 1e-12)
}

func TestPulseCounterRPMWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewPulseCounter(DefaultGeometry, time.Second, start)

	// 12*34.014 edges is one output revolution.
	perRev := 12 * 34.014
	edges := int(perRev * 2)
	for i := 0; i < edges; i++ {
		p.Edge(false)
	}

	m := p.Update(start.Add(500 * time.Millisecond))
	assert.Equal(t, 0.0, m.RPM, "window not elapsed")

	m = p.Update(start.Add(time.Second))
	want := float64(edges) / 12.0 / 34.014 * 60.0
	assert.InDelta(t, want, m.RPM, 1e-9)

	// Zero-order hold until the next window closes.
	m = p.Update(start.Add(1500 * time.Millisecond))
	assert.InDelta(t, want, m.RPM, 1e-9)

	m = p.Update(start.Add(2 * time.Second))
	assert.Equal(t, 0.0, m.RPM, "no edges in second window")
}

func TestPulseCounterZeroKeepsWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := NewPulseCounter(DefaultGeometry, time.Second, start)
	for i := 0; i < 100; i++ {
		p.Edge(true)
	}

	p.Zero()

	assert.Equal(t, int64(0), p.Count())
	m := p.Update(start.Add(time.Second))
	assert.Greater(t, m.RPM, 0.0, "edges before zero still count toward RPM")
}

func TestPulseCounterConcurrentEdges(t *testing.T) {
	p := NewPulseCounter(DefaultGeometry, time.Second, time.Now())

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				p.Edge(false)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4000), p.Count())
}
