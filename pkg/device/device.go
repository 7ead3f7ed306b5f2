// Package device implements sector-granular random access to an install target backed by a regular file
// (a disk or volume image) or a block device.
package device

import (
	"fmt"
	"os"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/sector"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

// Device is an opened install target. Offsets passed to its methods are relative to base, which is non-zero when
// the target is a partition inside a whole-disk image.
type Device struct {
	f    *os.File
	path string
	base int64
	size int64
}

// Open opens an existing file or block device for reading and writing. The target is never created or
// truncated. Block devices must report a 512-byte logical sector size.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &common.ResourceError{Op: "open", Path: path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &common.ResourceError{Op: "stat", Path: path, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, &common.ResourceError{Op: "open", Path: path, Err: fmt.Errorf("is a directory")}
	}

	size := info.Size()
	if info.Mode()&os.ModeDevice != 0 {
		devSize, sectorSize, err := probeBlockDevice(f)
		if err != nil {
			f.Close()
			return nil, &common.ResourceError{Op: "probe", Path: path, Err: err}
		}
		if sectorSize != consts.SECTOR_SIZE {
			f.Close()
			return nil, common.Validationf("open "+path,
				"logical sector size is %d bytes, only %d is supported", sectorSize, consts.SECTOR_SIZE)
		}
		size = devSize
	}

	return &Device{f: f, path: path, size: size}, nil
}

// OpenPartition opens the whole-disk image at path and narrows the device to primary partition index (1-4) as
// recorded in its MBR partition table.
func OpenPartition(path string, index int) (*Device, error) {
	if index < 1 || index > 4 {
		return nil, common.Validationf("open partition", "partition %d is not a primary MBR partition (1-4)", index)
	}
	d, err := Open(path)
	if err != nil {
		return nil, err
	}

	table, err := mbr.Read(d.f, consts.SECTOR_SIZE, consts.SECTOR_SIZE)
	if err != nil {
		d.Close()
		return nil, &common.ResourceError{Op: "read partition table", Path: path, Err: err}
	}
	if index > len(table.Partitions) {
		d.Close()
		return nil, common.Validationf("open partition", "%s has no partition %d", path, index)
	}
	p := table.Partitions[index-1]
	if p.Type == mbr.Empty || p.Size == 0 {
		d.Close()
		return nil, common.Validationf("open partition", "partition %d of %s is empty", index, path)
	}
	if p.GetStart()+p.GetSize() > d.size {
		d.Close()
		return nil, common.Validationf("open partition",
			"partition %d of %s ends at byte %d, past the end of the disk (%d)", index, path, p.GetStart()+p.GetSize(), d.size)
	}

	d.base = p.GetStart()
	d.size = p.GetSize()
	return d, nil
}

// Path returns the path the device was opened from.
func (d *Device) Path() string {
	return d.path
}

// Base returns the byte offset of the device within the underlying file.
func (d *Device) Base() int64 {
	return d.base
}

// Size returns the size of the device in bytes.
func (d *Device) Size() int64 {
	return d.size
}

// File exposes the underlying file for readers that work on absolute offsets.
func (d *Device) File() *os.File {
	return d.f
}

// RequireSectors fails unless the device holds at least n sectors.
func (d *Device) RequireSectors(n int) error {
	if need := int64(n) * consts.SECTOR_SIZE; d.size < need {
		return common.Validationf("check "+d.path, "target is %d bytes, need at least %d", d.size, need)
	}
	return nil
}

// ReadSector reads sector idx.
func (d *Device) ReadSector(idx int) (*sector.Sector, error) {
	s := new(sector.Sector)
	off := d.base + int64(idx)*consts.SECTOR_SIZE
	n, err := d.f.ReadAt(s[:], off)
	if n != consts.SECTOR_SIZE {
		if err == nil {
			err = fmt.Errorf("short read of %d bytes", n)
		}
		return nil, &common.ResourceError{Op: fmt.Sprintf("read sector %d of", idx), Path: d.path, Err: err}
	}
	return s, nil
}

// WriteSector writes exactly one sector of data to sector idx.
func (d *Device) WriteSector(idx int, data []byte) error {
	if len(data) != consts.SECTOR_SIZE {
		return common.Validationf("write sector", "got %d bytes, expected %d", len(data), consts.SECTOR_SIZE)
	}
	off := d.base + int64(idx)*consts.SECTOR_SIZE
	if _, err := d.f.WriteAt(data, off); err != nil {
		return &common.ResourceError{Op: fmt.Sprintf("write sector %d of", idx), Path: d.path, Err: err}
	}
	return nil
}

// Sync flushes written sectors to stable storage.
func (d *Device) Sync() error {
	if err := d.f.Sync(); err != nil {
		return &common.ResourceError{Op: "sync", Path: d.path, Err: err}
	}
	return nil
}

// Close closes the underlying file.
func (d *Device) Close() error {
	return d.f.Close()
}
