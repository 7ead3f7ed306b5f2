package bpb

import (
	"fmt"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/sector"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/diskfs/go-diskfs/util"
)

// Layout holds the reserved-area positions a FAT32 volume records in its BIOS parameter block.
type Layout struct {
	BytesPerSector  uint16
	FSInfoSector    uint16
	BackupVBRSector uint16
}

// ReadLayout extracts the layout fields from a volume's first sector.
func ReadLayout(vbr *sector.Sector) Layout {
	return Layout{
		BytesPerSector:  vbr.Uint16(consts.BPB_BYTES_PER_SECTOR_OFFSET),
		FSInfoSector:    vbr.Uint16(consts.BPB_FSINFO_SECTOR_OFFSET),
		BackupVBRSector: vbr.Uint16(consts.BPB_BACKUP_VBR_OFFSET),
	}
}

func inReservedArea(s uint16) bool {
	return s >= 1 && s < consts.RESERVED_AREA_SECTORS
}

// HasFSInfo reports whether the FSInfo sector lies inside the reserved area. FAT32 uses 0 and 0xFFFF to mean
// the volume has no FSInfo sector.
func (l Layout) HasFSInfo() bool {
	return inReservedArea(l.FSInfoSector)
}

// Validate checks the backup VBR sector lies inside the reserved area, is not sector 0 and does not collide with
// the FSInfo sector.
func (l Layout) Validate() error {
	if !inReservedArea(l.BackupVBRSector) {
		return &common.ValidationError{
			Op: "validate volume layout",
			Err: fmt.Errorf("backup VBR sector %d is outside [1, %d]",
				l.BackupVBRSector, consts.RESERVED_AREA_SECTORS-1),
		}
	}
	if l.HasFSInfo() && l.FSInfoSector == l.BackupVBRSector {
		return common.Validationf("validate volume layout", "FSInfo and backup VBR both claim sector %d", l.FSInfoSector)
	}
	return nil
}

// Reserved returns the sectors the allocator must skip: the VBR itself, the FSInfo sector when the volume has
// one, and the backup VBR.
func (l Layout) Reserved() []int {
	if !l.HasFSInfo() {
		return []int{0, int(l.BackupVBRSector)}
	}
	return []int{0, int(l.FSInfoSector), int(l.BackupVBRSector)}
}

// CheckFAT32 confirms that the size bytes starting at start of f hold a readable FAT32 file system with 512-byte
// sectors.
func CheckFAT32(f util.File, vbr *sector.Sector, size, start int64) error {
	if bps := vbr.Uint16(consts.BPB_BYTES_PER_SECTOR_OFFSET); bps != consts.SECTOR_SIZE {
		return common.Validationf("check FAT32 volume", "%d bytes per sector, only %d is supported", bps, consts.SECTOR_SIZE)
	}
	if _, err := fat32.Read(f, size, start, consts.SECTOR_SIZE); err != nil {
		return &common.ValidationError{Op: "check FAT32 volume", Err: err}
	}
	return nil
}
