//go:build !linux

package datalog

import "errors"

var errNotSupported = errors.New("datalog: volume control requires linux")

// LinuxStorage is a stub for non-Linux platforms.
type LinuxStorage struct{}

// NewLinuxStorage returns a stub that always errors.
func NewLinuxStorage(StorageConfig) *LinuxStorage {
	return &LinuxStorage{}
}

// Mount returns an error on non-Linux platforms.
func (*LinuxStorage) Mount() error { return errNotSupported }

// Unmount returns an error on non-Linux platforms.
func (*LinuxStorage) Unmount() error { return errNotSupported }

// Export returns an error on non-Linux platforms.
func (*LinuxStorage) Export() error { return errNotSupported }

// LinuxRebooter is a stub for non-Linux platforms.
type LinuxRebooter struct{}

// Reboot returns an error on non-Linux platforms.
func (LinuxRebooter) Reboot() error { return errNotSupported }
