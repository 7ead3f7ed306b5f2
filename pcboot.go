package pcboot

import (
	"fmt"
	"io"
	"os"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/crc32c"
	"github.com/bgrewell/pcboot-kit/pkg/images"
	"github.com/bgrewell/pcboot-kit/pkg/installer"
	"github.com/bgrewell/pcboot-kit/pkg/options"
	"github.com/bgrewell/pcboot-kit/pkg/stage1"
)

// Open loads the boot image bundle stored in dir and returns an Installer for it
func Open(dir string, opts ...options.Option) (Installer, error) {
	bundle, err := images.Load(dir)
	if err != nil {
		return nil, err
	}
	return installer.New(bundle, opts...), nil
}

// New returns an Installer for an already loaded bundle
func New(bundle *images.Bundle, opts ...options.Option) (Installer, error) {
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return installer.New(bundle, opts...), nil
}

// Install writes the bundle to the given targets. Either target may be empty but not both. The MBR target is
// handled first and a failure there stops the run before the volume is touched.
func Install(inst Installer, mbrTarget, volumeTarget string) (*installer.Placement, error) {
	if mbrTarget == "" && volumeTarget == "" {
		return nil, common.Validationf("install", "at least one of the MBR target or the volume target is required")
	}
	if mbrTarget != "" {
		if err := inst.InstallMBR(mbrTarget); err != nil {
			return nil, fmt.Errorf("failed to install MBR: %w", err)
		}
	}
	if volumeTarget == "" {
		return nil, nil
	}
	p, err := inst.InstallVolume(volumeTarget)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize volume: %w", err)
	}
	return p, nil
}

// Checksum computes the CRC-32C of everything read from r
func Checksum(r io.Reader) (uint32, error) {
	h := crc32c.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// ChecksumFile computes the CRC-32C of the file at path
func ChecksumFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &common.ResourceError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	sum, err := Checksum(f)
	if err != nil {
		return 0, &common.ResourceError{Op: "read", Path: path, Err: err}
	}
	return sum, nil
}

// FinalizeStage1 pads a raw stage1 image and appends its checksum trailer
func FinalizeStage1(raw []byte) ([]byte, error) {
	return stage1.Finalize(raw)
}

// VerifyStage1 checks the checksum trailer of a finalized stage1 image
func VerifyStage1(img []byte) error {
	return stage1.Verify(img)
}

// Installer installs a boot image bundle
type Installer interface {
	InstallMBR(target string) error
	InstallVolume(target string) (*installer.Placement, error)
	Verify(target string) (*installer.Placement, error)
}
