package sensor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// retryDelay spaces out sweeps after a failed read.
const retryDelay = 100 * time.Millisecond

type average struct {
	v   float64
	err error
}

// Sampler averages slow inputs on its own goroutine so reads from the
// control loop return the latest mean without touching the bus. Inputs are
// swept in order, n samples each, and each mean is published as it
// completes.
type Sampler struct {
	n      int
	inputs []func() (float64, error)
	latest []atomic.Pointer[average]

	ready     chan struct{}
	readyOnce sync.Once
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	running   atomic.Bool
}

// NewSampler creates a stopped sampler over inputs.
func NewSampler(n int, inputs ...func() (float64, error)) *Sampler {
	return &Sampler{
		n:      n,
		inputs: inputs,
		latest: make([]atomic.Pointer[average], len(inputs)),
		ready:  make(chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start runs sweeps until Stop.
func (s *Sampler) Start() {
	if s.running.Swap(true) {
		return
	}
	go func() {
		defer close(s.done)
		for {
			ok, failed := s.sweep()
			if !ok {
				return
			}
			if failed {
				select {
				case <-s.stop:
					return
				case <-time.After(retryDelay):
				}
			}
		}
	}()
}

// sweep averages every input once. ok is false if Stop interrupted it.
func (s *Sampler) sweep() (ok, failed bool) {
	for i, read := range s.inputs {
		v, err := s.average(read)
		if errors.Is(err, errStopped) {
			return false, failed
		}
		if err != nil {
			failed = true
		}
		s.latest[i].Store(&average{v: v, err: err})
	}
	s.readyOnce.Do(func() { close(s.ready) })
	return true, failed
}

var errStopped = errors.New("sampler stopped")

// average runs Average over read, giving up as soon as Stop is called.
func (s *Sampler) average(read func() (float64, error)) (float64, error) {
	return Average(s.n, func() (float64, error) {
		select {
		case <-s.stop:
			return 0, errStopped
		default:
		}
		return read()
	})
}

// Latest returns the most recent mean of input i. It returns ErrNoSamples
// until the first sweep reaches that input.
func (s *Sampler) Latest(i int) (float64, error) {
	a := s.latest[i].Load()
	if a == nil {
		return 0, ErrNoSamples
	}
	return a.v, a.err
}

// WaitReady blocks until the first sweep completes or timeout elapses.
func (s *Sampler) WaitReady(timeout time.Duration) error {
	select {
	case <-s.ready:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("adc sampler: no readings after %s", timeout)
	}
}

// Stop ends the sweep goroutine and waits for it. Stopping a sampler that
// was never started returns immediately.
func (s *Sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.running.Load() {
		<-s.done
	}
}
