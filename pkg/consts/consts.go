package consts

const (
	// Size in bytes of every sector this kit reads or writes.
	SECTOR_SIZE = 512

	// Number of sectors at the start of a FAT32 volume reserved for boot metadata and code.
	RESERVED_AREA_SECTORS = 32

	// Number of sectors occupied by the finalized stage1 image.
	STAGE1_SECTORS = 28

	// Size of the finalized stage1 image.
	STAGE1_IMAGE_SIZE = STAGE1_SECTORS * SECTOR_SIZE

	// Size of the little-endian CRC-32C trailer appended to stage1.
	STAGE1_CHECKSUM_SIZE = 4

	// Largest raw stage1 image that still leaves room for the trailer.
	STAGE1_PAYLOAD_SIZE = STAGE1_IMAGE_SIZE - STAGE1_CHECKSUM_SIZE

	// The VBR image holds the primary VBR template followed by the post-VBR (continuation) sector.
	VBR_IMAGE_SIZE = 2 * SECTOR_SIZE

	// MBR boot code occupies [0, 440). The disk signature, partition table and 0x55AA follow it.
	MBR_BOOT_CODE_END = 440

	// VBR entry jump occupies [0, 3).
	VBR_JUMP_END = 3

	// VBR boot code occupies [90, 512). [3, 90) is the BIOS parameter block.
	VBR_BOOT_CODE_START = 90

	// FAT32 BIOS parameter block field offsets (16-bit little-endian).
	BPB_BYTES_PER_SECTOR_OFFSET = 11
	BPB_FSINFO_SECTOR_OFFSET    = 48
	BPB_BACKUP_VBR_OFFSET       = 50

	// Address the BIOS loads the VBR to. Symbol addresses in the VBR are relative to it.
	VBR_BASE_ADDRESS = 0x7C00

	// Reflected Castagnoli polynomial (0x1EDC6F41 bit-reversed).
	CRC32C_POLYNOMIAL = 0x82F63B78

	// VBR symbol holding the post-VBR sector index, as listed by nm.
	VBR_POST_SECTOR_SYMBOL = "main.post_VBR_sector"

	// Key of the single entry in the VBR descriptor produced by the build.
	VBR_CONFIG_KEY = "post_VBR_sector"

	// Default file names inside a boot image bundle directory.
	BUNDLE_MBR_FILE      = "mbr.bin"
	BUNDLE_VBR_FILE      = "vbr.bin"
	BUNDLE_VBR_CFG_FILE  = "vbr.cfg"
	BUNDLE_STAGE1_FILE   = "stage1.bin"
	BUNDLE_MANIFEST_FILE = "bundle.yaml"
)
