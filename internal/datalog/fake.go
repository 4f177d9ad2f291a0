package datalog

// FakeStorage records volume operations in order.
type FakeStorage struct {
	Calls    []string
	Mounted  bool
	Exported bool

	// MountError, if set, is returned by Mount and the volume stays unmounted.
	MountError error
}

// NewFakeStorage creates a FakeStorage with the volume unmounted.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{}
}

// Mount records the call.
func (f *FakeStorage) Mount() error {
	f.Calls = append(f.Calls, "mount")
	if f.MountError != nil {
		return f.MountError
	}
	f.Mounted = true
	f.Exported = false
	return nil
}

// Unmount records the call.
func (f *FakeStorage) Unmount() error {
	f.Calls = append(f.Calls, "unmount")
	f.Mounted = false
	return nil
}

// Export records the call.
func (f *FakeStorage) Export() error {
	f.Calls = append(f.Calls, "export")
	f.Mounted = false
	f.Exported = true
	return nil
}

// FakeRebooter counts reboot requests.
type FakeRebooter struct {
	Count int
}

// Reboot records the request.
func (f *FakeRebooter) Reboot() error {
	f.Count++
	return nil
}
