//go:build linux

package datalog

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// LinuxStorage mounts the log volume and drives the configfs gadget LUN.
type LinuxStorage struct {
	cfg StorageConfig
}

// NewLinuxStorage returns a Storage for cfg.
func NewLinuxStorage(cfg StorageConfig) *LinuxStorage {
	return &LinuxStorage{cfg: cfg}
}

// Mount detaches the gadget LUN and mounts the volume.
func (s *LinuxStorage) Mount() error {
	if err := s.setLUN(""); err != nil {
		return err
	}
	err := unix.Mount(s.cfg.Device, s.cfg.MountPoint, s.cfg.FSType, unix.MS_NOATIME, "")
	if errors.Is(err, unix.EBUSY) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mount %s on %s: %w", s.cfg.Device, s.cfg.MountPoint, err)
	}
	return nil
}

// Unmount flushes dirty pages and unmounts the volume.
func (s *LinuxStorage) Unmount() error {
	unix.Sync()
	err := unix.Unmount(s.cfg.MountPoint, 0)
	if errors.Is(err, unix.EINVAL) {
		// not mounted
		return nil
	}
	if err != nil {
		return fmt.Errorf("unmount %s: %w", s.cfg.MountPoint, err)
	}
	return nil
}

// Export unmounts the volume and attaches it to the gadget LUN.
func (s *LinuxStorage) Export() error {
	if err := s.Unmount(); err != nil {
		return err
	}
	return s.setLUN(s.cfg.Device)
}

func (s *LinuxStorage) setLUN(dev string) error {
	if s.cfg.LUNFile == "" {
		return nil
	}
	if err := os.WriteFile(s.cfg.LUNFile, []byte(dev+"\n"), 0o644); err != nil {
		return fmt.Errorf("set gadget lun: %w", err)
	}
	return nil
}

// LinuxRebooter syncs filesystems and restarts the kernel.
type LinuxRebooter struct{}

// Reboot does not return on success.
func (LinuxRebooter) Reboot() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot: %w", err)
	}
	return nil
}
