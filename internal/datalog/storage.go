package datalog

// Storage controls the volume holding the log files.
type Storage interface {
	// Mount makes the volume writable locally, detaching it from the USB
	// gadget if it was exported. Mounting a mounted volume is a no-op.
	Mount() error

	// Unmount syncs and unmounts the volume.
	Unmount() error

	// Export unmounts the volume and hands it to the USB mass-storage
	// gadget so a host can read the logs.
	Export() error
}

// Rebooter restarts the instrument.
type Rebooter interface {
	Reboot() error
}

// StorageConfig locates the log volume and the gadget LUN.
type StorageConfig struct {
	Device     string // block device holding the log filesystem
	MountPoint string
	FSType     string
	LUNFile    string // mass-storage function lun.0/file in configfs
}

// DefaultStorageConfig matches the instrument image.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Device:     "/dev/mmcblk0p3",
		MountPoint: "/mnt/logs",
		FSType:     "vfat",
		LUNFile:    "/sys/kernel/config/usb_gadget/needle/functions/mass_storage.usb0/lun.0/file",
	}
}
