package pcboot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ktesting "github.com/bgrewell/pcboot-kit/internal/testing"
	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	sum, err := Checksum(strings.NewReader("123456789"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xE3069283), sum)

	path := filepath.Join(t.TempDir(), "zeros.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 32), 0o644))
	sum, err = ChecksumFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x8A9136AA), sum)

	_, err = ChecksumFile(filepath.Join(t.TempDir(), "missing"))
	var rerr *common.ResourceError
	assert.True(t, errors.As(err, &rerr))
}

func TestFinalizeStage1(t *testing.T) {
	img, err := FinalizeStage1([]byte("stage1"))
	require.NoError(t, err)
	assert.Len(t, img, consts.STAGE1_IMAGE_SIZE)
	assert.NoError(t, VerifyStage1(img))
}

func TestOpenAndInstall(t *testing.T) {
	dir := t.TempDir()
	bundle := ktesting.Images()
	require.NoError(t, ktesting.WriteBundle(dir, bundle))

	inst, err := Open(dir)
	require.NoError(t, err)

	disk := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, ktesting.NewRawVolume(disk, 1, 0, 0))
	volume := filepath.Join(t.TempDir(), "volume.img")
	require.NoError(t, ktesting.NewFAT32Volume(volume, ktesting.VolumeSize, "PCBOOT"))

	p, err := Install(inst, disk, volume)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.PostVBRSector)

	mbr, err := ktesting.ReadSectors(disk, 0, 0, 1)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(bundle.MBR[:consts.MBR_BOOT_CODE_END], mbr[:consts.MBR_BOOT_CODE_END]))

	_, err = inst.Verify(volume)
	assert.NoError(t, err)
}

func TestInstallRequiresATarget(t *testing.T) {
	inst, err := New(ktesting.Images())
	require.NoError(t, err)

	_, err = Install(inst, "", "")
	var verr *common.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestInstallStopsAfterMBRFailure(t *testing.T) {
	inst, err := New(ktesting.Images())
	require.NoError(t, err)

	volume := filepath.Join(t.TempDir(), "volume.img")
	require.NoError(t, ktesting.NewRawVolume(volume, 64, 1, 6))
	before, err := os.ReadFile(volume)
	require.NoError(t, err)

	_, err = Install(inst, filepath.Join(t.TempDir(), "missing.img"), volume)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to install MBR")

	after, err := os.ReadFile(volume)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
}

func TestNewRejectsInvalidBundle(t *testing.T) {
	b := ktesting.Images()
	b.VBR = nil
	_, err := New(b)
	assert.Error(t, err)
}
