package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/bgrewell/pcboot-kit"
	ktesting "github.com/bgrewell/pcboot-kit/internal/testing"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/images"
	"github.com/bgrewell/pcboot-kit/pkg/logging"
	"github.com/bgrewell/pcboot-kit/pkg/options"
	"github.com/bgrewell/usage"
	"github.com/diskfs/go-diskfs/filesystem/fat32"
)

func checksumSector(path string, idx int) (uint32, error) {
	data, err := ktesting.ReadSectors(path, 0, idx, 1)
	if err != nil {
		return 0, err
	}
	return pcboot.Checksum(bytes.NewReader(data))
}

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("install_and_verify"),
		usage.WithApplicationDescription("install_and_verify is a functional testing application that is part of pcboot-kit and is designed to verify that a volume formatted by go-diskfs can be initialized, verified and still read as FAT32 afterwards."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	rm := u.AddBooleanOption("rm", "remove-test-file", true, "Remove the test volume after running the tests", "", nil)
	bundleDir := u.AddArgument(1, "bundle", "Boot image bundle directory (synthetic images are used when omitted)", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	var (
		bundle *images.Bundle
		err    error
	)
	if bundleDir == nil || *bundleDir == "" {
		bundle = ktesting.Images()
	} else if bundle, err = images.Load(*bundleDir); err != nil {
		fmt.Printf("Failed to load bundle: %s\n", err)
		os.Exit(1)
	}

	o, err := os.CreateTemp("", "install_and_verify_test_*.img")
	if err != nil {
		fmt.Printf("Failed to create temporary file: %s\n", err)
		os.Exit(1)
	}
	o.Close()

	if *rm {
		defer os.Remove(o.Name())
	} else {
		fmt.Printf("Temporary file: %s\n", o.Name())
	}

	if err := ktesting.NewFAT32Volume(o.Name(), ktesting.VolumeSize, "PCBOOT"); err != nil {
		fmt.Printf("Failed to format test volume: %s\n", err)
		os.Exit(1)
	}

	logger := logging.NewSimpleLogger(os.Stderr, logging.LEVEL_TRACE, true)
	inst, err := pcboot.New(bundle, options.WithLogger(logger), options.WithFAT32Check(true))
	if err != nil {
		fmt.Printf("Failed to create installer: %s\n", err)
		os.Exit(1)
	}

	installed, err := inst.InstallVolume(o.Name())
	if err != nil {
		fmt.Printf("Failed to install: %s\n", err)
		os.Exit(1)
	}

	verified, err := inst.Verify(o.Name())
	if err != nil {
		fmt.Printf("Failed to verify: %s\n", err)
		os.Exit(1)
	}
	if verified.PostVBRSector != installed.PostVBRSector {
		fmt.Printf("Post-VBR sector mismatch:\n  Installed: %d\n  Verified:  %d\n", installed.PostVBRSector, verified.PostVBRSector)
		os.Exit(1)
	}

	// The primary and backup VBR must be byte-identical
	primary, err := checksumSector(o.Name(), 0)
	if err != nil {
		fmt.Printf("Failed to checksum VBR: %s\n", err)
		os.Exit(1)
	}
	backup, err := checksumSector(o.Name(), int(installed.Layout.BackupVBRSector))
	if err != nil {
		fmt.Printf("Failed to checksum backup VBR: %s\n", err)
		os.Exit(1)
	}
	if primary != backup {
		fmt.Printf("Checksum of VBR does not match checksum of backup VBR:\n  VBR:    %08x\n  Backup: %08x\n", primary, backup)
		os.Exit(1)
	}

	f, err := os.Open(o.Name())
	if err != nil {
		fmt.Printf("Failed to reopen test volume: %s\n", err)
		os.Exit(1)
	}
	defer f.Close()
	if _, err := fat32.Read(f, ktesting.VolumeSize, 0, consts.SECTOR_SIZE); err != nil {
		fmt.Printf("Volume no longer reads as FAT32: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("Installed and verified: post-VBR sector %d, stage1 sectors %v\n", installed.PostVBRSector, installed.Stage1Sectors)
}
