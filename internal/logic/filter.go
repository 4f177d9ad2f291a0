package logic

// MAFWindow is the moving-average window length in samples.
const MAFWindow = 5

// Filters holds the low-pass and moving-average state for the current reading.
// The moving average runs every tick; the low-pass only while the motor is driven.
type Filters struct {
	alpha float64
	lp    float64

	window [MAFWindow]float64
	sum    float64
	index  int
}

// NewFilters creates zeroed filters with the given low-pass coefficient.
func NewFilters(alpha float64) Filters {
	return Filters{alpha: alpha}
}

// LowPass applies lp' = a*x + (1-a)*lp and returns the new value.
func (f *Filters) LowPass(x float64) float64 {
	f.lp = f.alpha*x + (1-f.alpha)*f.lp
	return f.lp
}

// MovingAverage pushes x into the ring and returns sum/MAFWindow.
// The divisor is fixed, so the average ramps up from zero after a reset.
func (f *Filters) MovingAverage(x float64) float64 {
	f.sum -= f.window[f.index]
	f.window[f.index] = x
	f.sum += x
	f.index = (f.index + 1) % MAFWindow
	return f.MAF()
}

// LP returns the current low-pass value.
func (f *Filters) LP() float64 {
	return f.lp
}

// MAF returns the current moving average.
func (f *Filters) MAF() float64 {
	return f.sum / MAFWindow
}

// Reset zeroes both filters together.
func (f *Filters) Reset() {
	f.window = [MAFWindow]float64{}
	f.sum = 0
	f.index = 0
	f.lp = 0
}
