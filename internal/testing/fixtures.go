package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/images"
	"github.com/bgrewell/pcboot-kit/pkg/vbrcfg"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

const (
	// VolumeSize is large enough for go-diskfs to lay out a FAT32 file system with 512-byte clusters.
	VolumeSize = 40 * 1024 * 1024

	// PostVBROffset is the patch offset used by the synthetic VBR image.
	PostVBROffset = 480

	// Stage1RawSize is the length of the synthetic raw stage1 image.
	Stage1RawSize = 9000
)

// Images returns a deterministic synthetic bundle. The images are random bytes shaped like real boot records: the
// MBR and VBR templates end in 0x55AA and the VBR starts with a short jump over the BIOS parameter block.
func Images() *images.Bundle {
	r := rand.New(rand.NewSource(0x7C00))

	mbrImg := make([]byte, consts.SECTOR_SIZE)
	r.Read(mbrImg)
	mbrImg[510], mbrImg[511] = 0x55, 0xAA

	vbrImg := make([]byte, consts.VBR_IMAGE_SIZE)
	r.Read(vbrImg)
	copy(vbrImg[0:3], []byte{0xEB, 0x58, 0x90})
	vbrImg[PostVBROffset] = 0
	vbrImg[510], vbrImg[511] = 0x55, 0xAA

	stage1Img := make([]byte, Stage1RawSize)
	r.Read(stage1Img)

	return &images.Bundle{
		MBR:    mbrImg,
		VBR:    vbrImg,
		Stage1: stage1Img,
		Config: vbrcfg.Config{PostVBRSectorOffset: PostVBROffset},
	}
}

// WriteBundle stores b in dir using the default bundle file names.
func WriteBundle(dir string, b *images.Bundle) error {
	files := map[string][]byte{
		consts.BUNDLE_MBR_FILE:     b.MBR,
		consts.BUNDLE_VBR_FILE:     b.VBR,
		consts.BUNDLE_STAGE1_FILE:  b.Stage1,
		consts.BUNDLE_VBR_CFG_FILE: []byte(b.Config.String()),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// NewFAT32Volume formats a FAT32 volume image of size bytes at path. go-diskfs places the FSInfo sector at 1
// and the backup boot sector at 6.
func NewFAT32Volume(path string, size int64, label string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return err
	}
	if _, err := fat32.Create(f, size, 0, consts.SECTOR_SIZE, label); err != nil {
		return fmt.Errorf("failed to format %s: %w", path, err)
	}
	return nil
}

// NewPartitionedDisk creates a whole-disk image at path with random boot code, a valid MBR signature and a
// single FAT32 LBA partition starting at startSector and spanning sectors sectors, formatted as FAT32.
func NewPartitionedDisk(path string, startSector, sectors uint32, label string) error {
	size := int64(startSector+sectors) * consts.SECTOR_SIZE
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return err
	}

	boot := make([]byte, 446)
	rand.New(rand.NewSource(int64(startSector))).Read(boot)
	if _, err := f.WriteAt(boot, 0); err != nil {
		return err
	}

	table := &mbr.Table{
		LogicalSectorSize:  consts.SECTOR_SIZE,
		PhysicalSectorSize: consts.SECTOR_SIZE,
		Partitions: []*mbr.Partition{
			{
				Bootable: true,
				Type:     mbr.Fat32LBA,
				Start:    startSector,
				Size:     sectors,
			},
		},
	}
	if err := table.Write(f, size); err != nil {
		return fmt.Errorf("failed to write partition table: %w", err)
	}

	partStart := int64(startSector) * consts.SECTOR_SIZE
	partSize := int64(sectors) * consts.SECTOR_SIZE
	if _, err := fat32.Create(f, partSize, partStart, consts.SECTOR_SIZE, label); err != nil {
		return fmt.Errorf("failed to format partition: %w", err)
	}
	return nil
}

// NewRawVolume writes a zero-filled volume of sectors sectors whose boot sector records the given FSInfo and
// backup boot sector positions. It is used for layouts go-diskfs will not produce.
func NewRawVolume(path string, sectors int, fsinfo, backup uint16) error {
	img := make([]byte, sectors*consts.SECTOR_SIZE)
	img[consts.BPB_BYTES_PER_SECTOR_OFFSET] = byte(consts.SECTOR_SIZE & 0xFF)
	img[consts.BPB_BYTES_PER_SECTOR_OFFSET+1] = byte(consts.SECTOR_SIZE >> 8)
	img[consts.BPB_FSINFO_SECTOR_OFFSET] = byte(fsinfo)
	img[consts.BPB_FSINFO_SECTOR_OFFSET+1] = byte(fsinfo >> 8)
	img[consts.BPB_BACKUP_VBR_OFFSET] = byte(backup)
	img[consts.BPB_BACKUP_VBR_OFFSET+1] = byte(backup >> 8)
	img[510], img[511] = 0x55, 0xAA
	return os.WriteFile(path, img, 0o644)
}

// ReadSectors returns count sectors of the file at path starting at byte offset base.
func ReadSectors(path string, base int64, first, count int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	start := base + int64(first)*consts.SECTOR_SIZE
	end := start + int64(count)*consts.SECTOR_SIZE
	if end > int64(len(data)) {
		return nil, fmt.Errorf("%s is %d bytes, cannot read up to %d", path, len(data), end)
	}
	return bytes.Clone(data[start:end]), nil
}
