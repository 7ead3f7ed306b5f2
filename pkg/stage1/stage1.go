package stage1

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/crc32c"
)

// Finalize pads a raw stage1 image with zeros to STAGE1_PAYLOAD_SIZE and appends the little-endian CRC-32C of
// the padded bytes. The result is always exactly STAGE1_IMAGE_SIZE bytes. raw is not modified.
func Finalize(raw []byte) ([]byte, error) {
	if len(raw) > consts.STAGE1_PAYLOAD_SIZE {
		return nil, common.Validationf("finalize stage1",
			"image is %d bytes, the maximum is %d", len(raw), consts.STAGE1_PAYLOAD_SIZE)
	}

	img := make([]byte, consts.STAGE1_IMAGE_SIZE)
	copy(img, raw)
	binary.LittleEndian.PutUint32(img[consts.STAGE1_PAYLOAD_SIZE:], crc32c.Checksum(img[:consts.STAGE1_PAYLOAD_SIZE]))
	return img, nil
}

// Checksum returns the checksum stored in the trailer of a finalized image.
func Checksum(img []byte) (uint32, error) {
	if len(img) != consts.STAGE1_IMAGE_SIZE {
		return 0, common.Validationf("read stage1 checksum",
			"image is %d bytes, expected %d", len(img), consts.STAGE1_IMAGE_SIZE)
	}
	return binary.LittleEndian.Uint32(img[consts.STAGE1_PAYLOAD_SIZE:]), nil
}

// Verify recomputes the checksum of a finalized image and compares it with the trailer, the same check the
// VBR performs before transferring control to stage1.
func Verify(img []byte) error {
	stored, err := Checksum(img)
	if err != nil {
		return err
	}
	if actual := crc32c.Checksum(img[:consts.STAGE1_PAYLOAD_SIZE]); actual != stored {
		return &common.ValidationError{
			Op:  "verify stage1",
			Err: fmt.Errorf("checksum mismatch: trailer %08x, computed %08x", stored, actual),
		}
	}
	return nil
}

// Sectors splits a finalized image into its STAGE1_SECTORS sector-sized chunks, in load order.
func Sectors(img []byte) ([][]byte, error) {
	if len(img) != consts.STAGE1_IMAGE_SIZE {
		return nil, common.Validationf("split stage1",
			"image is %d bytes, expected %d", len(img), consts.STAGE1_IMAGE_SIZE)
	}
	chunks := make([][]byte, 0, consts.STAGE1_SECTORS)
	for off := 0; off < len(img); off += consts.SECTOR_SIZE {
		chunks = append(chunks, img[off:off+consts.SECTOR_SIZE])
	}
	return chunks, nil
}

// Extract verifies a finalized image and returns its payload region with trailing zero padding removed. A raw
// image that itself ended in zero bytes loses them too; the boot code never depends on them.
func Extract(img []byte) ([]byte, error) {
	if err := Verify(img); err != nil {
		return nil, err
	}
	return bytes.Clone(bytes.TrimRight(img[:consts.STAGE1_PAYLOAD_SIZE], "\x00")), nil
}
