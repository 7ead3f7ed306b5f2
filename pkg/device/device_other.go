//go:build !linux

package device

import (
	"os"

	"github.com/bgrewell/pcboot-kit/pkg/consts"
)

// probeBlockDevice falls back to the size reported by Stat and assumes 512-byte sectors.
func probeBlockDevice(f *os.File) (size int64, logicalSectorSize int64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	return info.Size(), consts.SECTOR_SIZE, nil
}
