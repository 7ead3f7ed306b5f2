package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ktesting "github.com/bgrewell/pcboot-kit/internal/testing"
	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDoesNotCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.img")
	_, err := Open(path)
	var rerr *common.ResourceError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, path, rerr.Path)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "Open must not create the target")
}

func TestOpenRejectsDirectory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestReadWriteSector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")
	require.NoError(t, ktesting.NewRawVolume(path, 40, 1, 6))

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, int64(40*consts.SECTOR_SIZE), d.Size())
	assert.Equal(t, int64(0), d.Base())
	assert.NoError(t, d.RequireSectors(32))
	assert.Error(t, d.RequireSectors(41))

	data := make([]byte, consts.SECTOR_SIZE)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, d.WriteSector(5, data))
	require.NoError(t, d.Sync())

	s, err := d.ReadSector(5)
	require.NoError(t, err)
	assert.Equal(t, data, s.Bytes())

	onDisk, err := ktesting.ReadSectors(path, 0, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	first, err := d.ReadSector(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(6), first.Uint16(consts.BPB_BACKUP_VBR_OFFSET))
}

func TestWriteSectorSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")
	require.NoError(t, ktesting.NewRawVolume(path, 4, 1, 6))

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	var verr *common.ValidationError
	assert.True(t, errors.As(d.WriteSector(0, make([]byte, 100)), &verr))
}

func TestReadSectorPastEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol.img")
	require.NoError(t, ktesting.NewRawVolume(path, 4, 1, 6))

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.ReadSector(4)
	var rerr *common.ResourceError
	assert.True(t, errors.As(err, &rerr))
}

func TestOpenPartition(t *testing.T) {
	const start, sectors = 2048, 81920
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, ktesting.NewPartitionedDisk(path, start, sectors, "PCBOOT"))

	d, err := OpenPartition(path, 1)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, int64(start*consts.SECTOR_SIZE), d.Base())
	assert.Equal(t, int64(sectors*consts.SECTOR_SIZE), d.Size())

	vbr, err := d.ReadSector(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(consts.SECTOR_SIZE), vbr.Uint16(consts.BPB_BYTES_PER_SECTOR_OFFSET))
	assert.Equal(t, uint16(6), vbr.Uint16(consts.BPB_BACKUP_VBR_OFFSET))
}

func TestOpenPartitionErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, ktesting.NewPartitionedDisk(path, 2048, 81920, "PCBOOT"))

	tests := []struct {
		name  string
		path  string
		index int
	}{
		{"index zero", path, 0},
		{"index five", path, 5},
		{"empty slot", path, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenPartition(tt.path, tt.index)
			var verr *common.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}

	t.Run("no partition table", func(t *testing.T) {
		raw := filepath.Join(t.TempDir(), "raw.img")
		require.NoError(t, os.WriteFile(raw, make([]byte, 4*consts.SECTOR_SIZE), 0o644))
		_, err := OpenPartition(raw, 1)
		var rerr *common.ResourceError
		assert.True(t, errors.As(err, &rerr), "got %v", err)
	})

	t.Run("partition past end of disk", func(t *testing.T) {
		short := filepath.Join(t.TempDir(), "short.img")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(short, data[:1024*consts.SECTOR_SIZE], 0o644))
		_, err = OpenPartition(short, 1)
		var verr *common.ValidationError
		assert.True(t, errors.As(err, &verr), "got %v", err)
	})
}
