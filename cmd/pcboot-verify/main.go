package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bgrewell/pcboot-kit"
	"github.com/bgrewell/pcboot-kit/pkg/logging"
	"github.com/bgrewell/pcboot-kit/pkg/options"
	"github.com/bgrewell/usage"
	"github.com/fatih/color"
)

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("pcboot-verify"),
		usage.WithApplicationDescription("pcboot-verify checks that the reserved area of a FAT32 volume holds the given boot image bundle: VBR boot code, backup VBR, post-VBR sector and a stage1 image with a valid checksum."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	debug := u.AddBooleanOption("v", "verbose", false, "Enable verbose (debug) logging", "", nil)
	bundleDir := u.AddStringOption("b", "bundle", ".", "Directory holding mbr.bin, vbr.bin, vbr.cfg and stage1.bin", "", nil)
	partition := u.AddStringOption("p", "partition", "", "Primary MBR partition (1-4) of the volume argument holding the FAT32 volume", "", nil)
	finalized := u.AddBooleanOption("s", "stage1-finalized", false, "stage1.bin is already padded and checksummed", "", nil)
	volume := u.AddArgument(1, "volume", "The FAT32 volume (or whole-disk image with --partition) to check", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if volume == nil || *volume == "" {
		u.PrintError(fmt.Errorf("the volume to check <volume> must be provided"))
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	if *debug {
		level = logging.LEVEL_DEBUG
	}
	opts := []options.Option{
		options.WithLogger(logging.NewSimpleLogger(os.Stderr, level, true)),
		options.WithStage1Finalized(*finalized),
	}
	if *partition != "" {
		index, err := strconv.Atoi(*partition)
		if err != nil {
			u.PrintError(fmt.Errorf("invalid --partition %q: %w", *partition, err))
			os.Exit(1)
		}
		opts = append(opts, options.WithPartition(index))
	}

	inst, err := pcboot.Open(*bundleDir, opts...)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	p, err := inst.Verify(*volume)
	if err != nil {
		color.Red("✗ %s: %v", *volume, err)
		os.Exit(1)
	}
	color.Green("✓ %s: post-VBR sector %d, backup VBR sector %d, stage1 sectors %v",
		*volume, p.PostVBRSector, p.Layout.BackupVBRSector, p.Stage1Sectors)
}
