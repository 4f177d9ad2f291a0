package sensor

// FakeReader is a test double returning scripted values.
type FakeReader struct {
	CurrentMA  float64
	VoltageV   float64
	ForceN     float64
	SpeedPct   float64
	BatteryPct float64

	// PowerError, if set, is returned by Power. Other reads are unaffected.
	PowerError error

	// ForceError, if set, is returned by Force.
	ForceError error

	// Reads counts calls per method, keyed "power", "force", "speed", "battery".
	Reads map[string]int

	// OnRead, if set, is called at the start of every read with its Reads key.
	// Tests use it to deliver edges while a slow read is in progress.
	OnRead func(name string)

	Closed bool
}

// NewFakeReader creates a FakeReader with all readings zero.
func NewFakeReader() *FakeReader {
	return &FakeReader{Reads: make(map[string]int)}
}

// Power returns the scripted current and voltage.
func (f *FakeReader) Power() (Power, error) {
	f.read("power")
	if f.PowerError != nil {
		return Power{}, f.PowerError
	}
	return Power{CurrentMA: f.CurrentMA, VoltageV: f.VoltageV}, nil
}

// Force returns the scripted force.
func (f *FakeReader) Force() (float64, error) {
	f.read("force")
	if f.ForceError != nil {
		return 0, f.ForceError
	}
	return f.ForceN, nil
}

// Speed returns the scripted speed percentage.
func (f *FakeReader) Speed() (float64, error) {
	f.read("speed")
	return f.SpeedPct, nil
}

// Battery returns the scripted battery percentage.
func (f *FakeReader) Battery() (float64, error) {
	f.read("battery")
	return f.BatteryPct, nil
}

func (f *FakeReader) read(name string) {
	f.Reads[name]++
	if f.OnRead != nil {
		f.OnRead(name)
	}
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
