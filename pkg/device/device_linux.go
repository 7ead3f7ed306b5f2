package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// probeBlockDevice returns the size in bytes and the logical sector size of an opened block device.
func probeBlockDevice(f *os.File) (size int64, logicalSectorSize int64, err error) {
	fd := int(f.Fd())
	bytes, err := unix.IoctlGetInt(fd, unix.BLKGETSIZE64)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get block device size: %w", err)
	}
	lss, err := unix.IoctlGetInt(fd, unix.BLKSSZGET)
	if err != nil {
		return 0, 0, fmt.Errorf("unable to get device logical sector size: %w", err)
	}
	return int64(bytes), int64(lss), nil
}
