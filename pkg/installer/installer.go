package installer

import (
	"bytes"
	"fmt"

	"github.com/bgrewell/pcboot-kit/pkg/bpb"
	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/device"
	"github.com/bgrewell/pcboot-kit/pkg/images"
	"github.com/bgrewell/pcboot-kit/pkg/logging"
	"github.com/bgrewell/pcboot-kit/pkg/options"
	"github.com/bgrewell/pcboot-kit/pkg/reserved"
	"github.com/bgrewell/pcboot-kit/pkg/sector"
	"github.com/bgrewell/pcboot-kit/pkg/stage1"
)

// Progress step names reported to the progress callback.
const (
	StepMBR       = "mbr"
	StepVBR       = "vbr"
	StepBackupVBR = "backup-vbr"
	StepPostVBR   = "post-vbr"
	StepStage1    = "stage1"
)

// Placement records where a volume install put each piece of the boot loader inside the reserved area.
type Placement struct {
	Layout        bpb.Layout
	PostVBRSector int
	Stage1Sectors []int
}

// Installer writes a boot image bundle to MBR and volume targets. The bundle is shared read-only; an Installer
// holds no per-target state between calls.
type Installer struct {
	images  *images.Bundle
	options options.Options
	log     *logging.Logger
}

// New creates an Installer for bundle.
func New(bundle *images.Bundle, opts ...options.Option) *Installer {
	o := options.Apply(opts...)
	if o.Stage1Finalized && !bundle.Stage1Finalized {
		declared := *bundle
		declared.Stage1Finalized = true
		bundle = &declared
	}
	return &Installer{
		images:  bundle,
		options: o,
		log:     logging.NewLogger(o.Logger).WithName("installer"),
	}
}

func (i *Installer) progress(step string, written, total int) {
	if i.options.ProgressCallback != nil {
		i.options.ProgressCallback(step, written, total)
	}
}

func (i *Installer) finish(dev *device.Device) error {
	if !i.options.Sync {
		return nil
	}
	return dev.Sync()
}

// InstallMBR replaces the boot code of the master boot record at target with the bundle's MBR image. target must
// already exist; the partition table and boot signature are left untouched.
func (i *Installer) InstallMBR(target string) error {
	if err := i.images.ValidateMBR(); err != nil {
		return err
	}

	dev, err := device.Open(target)
	if err != nil {
		return err
	}
	defer dev.Close()

	if err := i.installMBR(dev); err != nil {
		return err
	}
	i.log.Info("Installed MBR boot code", "target", target)
	return nil
}

func (i *Installer) installMBR(dev *device.Device) error {
	if err := dev.RequireSectors(1); err != nil {
		return err
	}

	mbr, err := dev.ReadSector(0)
	if err != nil {
		return err
	}
	if err := mbr.PatchMBRBootCode(i.images.MBR); err != nil {
		return err
	}
	i.log.Trace("Writing MBR", "range", fmt.Sprintf("[0, %d)", consts.MBR_BOOT_CODE_END))
	if err := dev.WriteSector(0, mbr.Bytes()); err != nil {
		return err
	}
	i.progress(StepMBR, 1, 1)
	return i.finish(dev)
}

// InstallVolume initializes the reserved area of the FAT32 volume at target: the patched VBR goes to sector 0
// and to the backup VBR sector, the continuation code to a freshly chosen post-VBR sector, and the finalized
// stage1 image to the remaining free sectors in ascending order.
//
// Every check, including the sector plan, completes before the first write. A failure during the writes leaves
// the reserved area partly updated; no rollback is attempted.
func (i *Installer) InstallVolume(target string) (*Placement, error) {
	if err := i.images.ValidateVolume(); err != nil {
		return nil, err
	}

	dev, err := i.openVolume(target)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	placement, err := i.initializeReservedArea(dev)
	if err != nil {
		return nil, err
	}
	i.log.Info("Initialized volume reserved area", "target", target,
		"postVBRSector", placement.PostVBRSector, "backupVBRSector", placement.Layout.BackupVBRSector)
	return placement, nil
}

func (i *Installer) openVolume(target string) (*device.Device, error) {
	if i.options.Partition != 0 {
		i.log.Debug("Opening volume partition", "target", target, "partition", i.options.Partition)
		return device.OpenPartition(target, i.options.Partition)
	}
	return device.Open(target)
}

// plan reads the volume layout and draws every sector the install will write. The post-VBR sector is drawn first
// from the same cursor the stage1 sectors come from, which keeps it out of the stage1 placement.
func (i *Installer) plan(dev *device.Device) (*sector.Sector, *Placement, error) {
	if err := dev.RequireSectors(consts.RESERVED_AREA_SECTORS); err != nil {
		return nil, nil, err
	}

	vbr, err := dev.ReadSector(0)
	if err != nil {
		return nil, nil, err
	}
	layout := bpb.ReadLayout(vbr)
	i.log.Debug("Read volume layout", "fsinfoSector", layout.FSInfoSector, "backupVBRSector", layout.BackupVBRSector)
	if err := layout.Validate(); err != nil {
		return nil, nil, err
	}

	if i.options.CheckFAT32 {
		if err := bpb.CheckFAT32(dev.File(), vbr, dev.Size(), dev.Base()); err != nil {
			return nil, nil, err
		}
	}

	alloc, err := reserved.NewAllocator(consts.RESERVED_AREA_SECTORS, layout.Reserved()...)
	if err != nil {
		return nil, nil, err
	}

	p := &Placement{Layout: layout}
	if p.PostVBRSector, err = alloc.Next(); err != nil {
		return nil, nil, err
	}
	for n := 0; n < consts.STAGE1_SECTORS; n++ {
		s, err := alloc.Next()
		if err != nil {
			return nil, nil, err
		}
		p.Stage1Sectors = append(p.Stage1Sectors, s)
	}
	i.log.Debug("Planned reserved area", "postVBRSector", p.PostVBRSector, "stage1Sectors", p.Stage1Sectors)
	return vbr, p, nil
}

func (i *Installer) initializeReservedArea(dev *device.Device) (*Placement, error) {
	vbr, p, err := i.plan(dev)
	if err != nil {
		return nil, err
	}

	img, err := i.images.FinalizedStage1()
	if err != nil {
		return nil, err
	}
	chunks, err := stage1.Sectors(img)
	if err != nil {
		return nil, err
	}

	if err := vbr.PatchVBRJump(i.images.PrimaryVBR()); err != nil {
		return nil, err
	}
	if err := vbr.PatchVBRBootCode(i.images.PrimaryVBR()); err != nil {
		return nil, err
	}
	if err := vbr.SetByte(i.images.Config.PostVBRSectorOffset, byte(p.PostVBRSector)); err != nil {
		return nil, err
	}

	total := 3 + len(chunks)
	written := 0
	write := func(step string, idx int, data []byte) error {
		i.log.Trace("Writing sector", "step", step, "sector", idx)
		if err := dev.WriteSector(idx, data); err != nil {
			return err
		}
		written++
		i.progress(step, written, total)
		return nil
	}

	if err := write(StepVBR, 0, vbr.Bytes()); err != nil {
		return nil, err
	}
	if err := write(StepBackupVBR, int(p.Layout.BackupVBRSector), vbr.Bytes()); err != nil {
		return nil, err
	}
	if err := write(StepPostVBR, p.PostVBRSector, i.images.PostVBR()); err != nil {
		return nil, err
	}
	for n, chunk := range chunks {
		if err := write(StepStage1, p.Stage1Sectors[n], chunk); err != nil {
			return nil, err
		}
	}

	if err := i.finish(dev); err != nil {
		return nil, err
	}
	return p, nil
}

// Verify re-reads the reserved area of the volume at target and checks it holds this bundle: the VBR boot code,
// an identical backup VBR, the continuation code at the post-VBR sector recorded in the VBR, and a stage1 image
// whose checksum matches its trailer.
func (i *Installer) Verify(target string) (*Placement, error) {
	if err := i.images.ValidateVolume(); err != nil {
		return nil, err
	}

	dev, err := i.openVolume(target)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	return i.verify(dev)
}

func (i *Installer) verify(dev *device.Device) (*Placement, error) {
	_, p, err := i.plan(dev)
	if err != nil {
		return nil, err
	}

	vbr, err := dev.ReadSector(0)
	if err != nil {
		return nil, err
	}
	mismatch := func(format string, args ...interface{}) error {
		return common.Validationf("verify "+dev.Path(), format, args...)
	}

	primary := i.images.PrimaryVBR()
	if !bytes.Equal(vbr[:consts.VBR_JUMP_END], primary[:consts.VBR_JUMP_END]) {
		return nil, mismatch("VBR entry jump does not match the bundle")
	}
	expected, err := sector.FromBytes(primary)
	if err != nil {
		return nil, err
	}
	if err := expected.SetByte(i.images.Config.PostVBRSectorOffset, vbr[i.images.Config.PostVBRSectorOffset]); err != nil {
		return nil, err
	}
	if !bytes.Equal(vbr[consts.VBR_BOOT_CODE_START:], expected[consts.VBR_BOOT_CODE_START:]) {
		return nil, mismatch("VBR boot code does not match the bundle")
	}
	if recorded := int(vbr[i.images.Config.PostVBRSectorOffset]); recorded != p.PostVBRSector {
		return nil, mismatch("VBR records post-VBR sector %d, layout implies %d", recorded, p.PostVBRSector)
	}

	backup, err := dev.ReadSector(int(p.Layout.BackupVBRSector))
	if err != nil {
		return nil, err
	}
	if *backup != *vbr {
		return nil, mismatch("backup VBR at sector %d differs from sector 0", p.Layout.BackupVBRSector)
	}

	post, err := dev.ReadSector(p.PostVBRSector)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(post.Bytes(), i.images.PostVBR()) {
		return nil, mismatch("post-VBR sector %d does not match the bundle", p.PostVBRSector)
	}

	img := make([]byte, 0, consts.STAGE1_IMAGE_SIZE)
	for _, idx := range p.Stage1Sectors {
		s, err := dev.ReadSector(idx)
		if err != nil {
			return nil, err
		}
		img = append(img, s.Bytes()...)
	}
	if err := stage1.Verify(img); err != nil {
		return nil, err
	}
	i.log.Info("Verified volume reserved area", "target", dev.Path(), "postVBRSector", p.PostVBRSector)
	return p, nil
}
