package sector

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
)

// Sector is a single 512-byte sector buffer. Boot code is patched into it only through the named operations
// below, each of which touches one documented byte range and leaves everything else as it was read.
type Sector [consts.SECTOR_SIZE]byte

// FromBytes copies exactly one sector's worth of bytes into a new Sector.
func FromBytes(b []byte) (*Sector, error) {
	if len(b) != consts.SECTOR_SIZE {
		return nil, common.Validationf("load sector", "got %d bytes, expected %d", len(b), consts.SECTOR_SIZE)
	}
	s := new(Sector)
	copy(s[:], b)
	return s, nil
}

// Bytes returns the sector contents. The slice aliases the sector.
func (s *Sector) Bytes() []byte {
	return s[:]
}

// Uint16 reads a little-endian 16-bit field at off.
func (s *Sector) Uint16(off int) uint16 {
	return binary.LittleEndian.Uint16(s[off : off+2])
}

// patchRange copies src[start:end] over s[start:end]. src is an image at least end bytes long whose layout lines
// up with the sector.
func (s *Sector) patchRange(op string, src []byte, start, end int) error {
	if len(src) < end {
		return common.Validationf(op, "source image is %d bytes, need at least %d", len(src), end)
	}
	copy(s[start:end], src[start:end])
	return nil
}

// PatchMBRBootCode replaces the MBR boot code [0, 440) with the same range of img. The disk signature,
// partition table and boot signature are not touched.
func (s *Sector) PatchMBRBootCode(img []byte) error {
	return s.patchRange("patch MBR boot code", img, 0, consts.MBR_BOOT_CODE_END)
}

// PatchVBRJump replaces the VBR entry jump [0, 3) with the same range of img.
func (s *Sector) PatchVBRJump(img []byte) error {
	return s.patchRange("patch VBR jump", img, 0, consts.VBR_JUMP_END)
}

// PatchVBRBootCode replaces the VBR boot code [90, 512) with the same range of img. The BIOS parameter block in
// [3, 90) is preserved.
func (s *Sector) PatchVBRBootCode(img []byte) error {
	return s.patchRange("patch VBR boot code", img, consts.VBR_BOOT_CODE_START, consts.SECTOR_SIZE)
}

// SetByte writes a single byte at off.
func (s *Sector) SetByte(off int, v byte) error {
	if off < 0 || off >= consts.SECTOR_SIZE {
		return &common.ValidationError{Op: "patch sector byte", Err: fmt.Errorf("offset %d outside sector", off)}
	}
	s[off] = v
	return nil
}
