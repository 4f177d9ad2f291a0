package display

import "github.com/sweeney/biopsy-needle/internal/logic"

// FakeSink records rendered views for tests.
type FakeSink struct {
	Views  []logic.View
	Err    error
	Closed bool
}

// NewFakeSink creates an empty FakeSink.
func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

// Render records v and returns Err.
func (f *FakeSink) Render(v logic.View) error {
	f.Views = append(f.Views, v)
	return f.Err
}

// Close marks the sink as closed.
func (f *FakeSink) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent view, or the zero View if none.
func (f *FakeSink) Last() logic.View {
	if len(f.Views) == 0 {
		return logic.View{}
	}
	return f.Views[len(f.Views)-1]
}
