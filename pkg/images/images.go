package images

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/stage1"
	"github.com/bgrewell/pcboot-kit/pkg/vbrcfg"
	"gopkg.in/yaml.v3"
)

// Bundle holds the prebuilt boot images and the VBR descriptor. The images are opaque; the kit copies and
// patches them but never interprets their instructions. A Bundle is read-only once loaded.
type Bundle struct {
	// MBR is the master boot record image. Only its first 440 bytes are installed.
	MBR []byte
	// VBR is the 1024-byte VBR image: the primary VBR template followed by the post-VBR sector.
	VBR []byte
	// Stage1 is the stage1 image, raw unless Stage1Finalized is set.
	Stage1 []byte
	// Stage1Finalized marks Stage1 as already padded and checksummed.
	Stage1Finalized bool
	// Config carries the post-VBR sector patch offset.
	Config vbrcfg.Config
}

// Manifest is the optional bundle.yaml stored next to the images. Empty fields fall back to the default names.
type Manifest struct {
	MBR             string `yaml:"mbr"`
	VBR             string `yaml:"vbr"`
	VBRConfig       string `yaml:"vbr_config"`
	Stage1          string `yaml:"stage1"`
	Stage1Finalized bool   `yaml:"stage1_finalized"`
}

func (m *Manifest) applyDefaults() {
	if m.MBR == "" {
		m.MBR = consts.BUNDLE_MBR_FILE
	}
	if m.VBR == "" {
		m.VBR = consts.BUNDLE_VBR_FILE
	}
	if m.VBRConfig == "" {
		m.VBRConfig = consts.BUNDLE_VBR_CFG_FILE
	}
	if m.Stage1 == "" {
		m.Stage1 = consts.BUNDLE_STAGE1_FILE
	}
}

// LoadManifest reads bundle.yaml from dir. A missing manifest yields the defaults.
func LoadManifest(dir string) (Manifest, error) {
	var m Manifest
	path := filepath.Join(dir, consts.BUNDLE_MANIFEST_FILE)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return m, &common.ResourceError{Op: "read", Path: path, Err: err}
	default:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return m, &common.ValidationError{Op: "parse " + path, Err: err}
		}
	}
	m.applyDefaults()
	return m, nil
}

// Load reads a bundle from dir. Relative names in the manifest are resolved against dir.
func Load(dir string) (*Bundle, error) {
	m, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	resolve := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(dir, name)
	}

	b := &Bundle{Stage1Finalized: m.Stage1Finalized}
	if b.MBR, err = readImage(resolve(m.MBR)); err != nil {
		return nil, err
	}
	if b.VBR, err = readImage(resolve(m.VBR)); err != nil {
		return nil, err
	}
	if b.Stage1, err = readImage(resolve(m.Stage1)); err != nil {
		return nil, err
	}
	if b.Config, err = vbrcfg.ParseFile(resolve(m.VBRConfig)); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("boot image bundle %s: %w", dir, err)
	}
	return b, nil
}

func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &common.ResourceError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// Validate checks image sizes and the descriptor.
func (b *Bundle) Validate() error {
	if err := b.ValidateMBR(); err != nil {
		return err
	}
	return b.ValidateVolume()
}

// ValidateMBR checks the images needed to patch a master boot record.
func (b *Bundle) ValidateMBR() error {
	if len(b.MBR) < consts.MBR_BOOT_CODE_END {
		return common.Validationf("validate MBR image", "image is %d bytes, need at least %d", len(b.MBR), consts.MBR_BOOT_CODE_END)
	}
	return nil
}

// ValidateVolume checks the images needed to initialize a volume's reserved area.
func (b *Bundle) ValidateVolume() error {
	if len(b.VBR) != consts.VBR_IMAGE_SIZE {
		return common.Validationf("validate VBR image", "image is %d bytes, expected %d", len(b.VBR), consts.VBR_IMAGE_SIZE)
	}
	if err := b.Config.Validate(); err != nil {
		return err
	}
	if b.Stage1Finalized {
		return stage1.Verify(b.Stage1)
	}
	if len(b.Stage1) > consts.STAGE1_PAYLOAD_SIZE {
		return common.Validationf("validate stage1 image", "image is %d bytes, the maximum is %d", len(b.Stage1), consts.STAGE1_PAYLOAD_SIZE)
	}
	return nil
}

// PrimaryVBR returns the first half of the VBR image, the template for sector 0.
func (b *Bundle) PrimaryVBR() []byte {
	return b.VBR[:consts.SECTOR_SIZE]
}

// PostVBR returns the second half of the VBR image, the continuation sector.
func (b *Bundle) PostVBR() []byte {
	return b.VBR[consts.SECTOR_SIZE:consts.VBR_IMAGE_SIZE]
}

// FinalizedStage1 returns the stage1 image ready to be written.
func (b *Bundle) FinalizedStage1() ([]byte, error) {
	if b.Stage1Finalized {
		if err := stage1.Verify(b.Stage1); err != nil {
			return nil, err
		}
		return b.Stage1, nil
	}
	return stage1.Finalize(b.Stage1)
}
