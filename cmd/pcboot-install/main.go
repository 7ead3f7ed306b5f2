package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bgrewell/pcboot-kit"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/installer"
	"github.com/bgrewell/pcboot-kit/pkg/logging"
	"github.com/bgrewell/pcboot-kit/pkg/options"
	"github.com/bgrewell/usage"
	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

// CreateProgressCallback returns a ProgressCallback that updates the spinner's message.
func CreateProgressCallback(spinner *yacspin.Spinner, target string) options.ProgressCallback {
	return func(step string, sectorsWritten int, totalSectors int) {
		width, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			width = 80
		}

		suffix := fmt.Sprintf(" [%d/%d] %s", sectorsWritten, totalSectors, step)
		available := width - len(suffix) - 6
		if available < 10 {
			available = 10
		}
		if len(target) > available {
			target = "..." + target[len(target)-(available-3):]
		}
		spinner.Message(fmt.Sprintf("%s %s", suffix, target))
	}
}

// InitializeSpinner sets up and starts the yacspin spinner.
func InitializeSpinner() (*yacspin.Spinner, error) {
	settings := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		ShowCursor:        false,
		SpinnerAtEnd:      false,
		CharSet:           yacspin.CharSets[14],
		Colors:            []string{"fgHiCyan"},
		StopColors:        []string{"fgHiGreen"},
		StopFailColors:    []string{"fgHiRed"},
		StopFailCharacter: "✗",
		StopCharacter:     "✓",
	}

	spinner, err := yacspin.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create spinner: %w", err)
	}
	if err := spinner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start spinner: %w", err)
	}
	return spinner, nil
}

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("pcboot-install"),
		usage.WithApplicationDescription("pcboot-install patches the boot code of a master boot record and/or initializes the reserved area of a FAT32 volume with the VBR, its backup, the post-VBR sector and the checksummed stage1 image."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	debug := u.AddBooleanOption("v", "verbose", false, "Enable verbose (debug) logging", "", nil)
	trace := u.AddBooleanOption("vv", "trace", false, "Enable trace logging", "", nil)
	noColor := u.AddBooleanOption("nc", "no-color", false, "Disable colored log output", "", nil)
	quiet := u.AddBooleanOption("q", "quiet", false, "Disable the progress spinner", "", nil)
	mbrTarget := u.AddStringOption("m", "mbr", "", "Disk or disk image whose MBR boot code is replaced", "", nil)
	volumeTarget := u.AddStringOption("f", "volume", "", "FAT32 volume (or whole-disk image with --partition) whose reserved area is initialized", "", nil)
	bundleDir := u.AddStringOption("b", "bundle", ".", "Directory holding mbr.bin, vbr.bin, vbr.cfg and stage1.bin", "", nil)
	partition := u.AddStringOption("p", "partition", "", "Primary MBR partition (1-4) of --volume holding the FAT32 volume", "", nil)
	checkFAT32 := u.AddBooleanOption("c", "check-fat32", false, "Refuse volumes that do not parse as FAT32", "", nil)
	finalized := u.AddBooleanOption("s", "stage1-finalized", false, "stage1.bin is already padded and checksummed", "", nil)
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if *mbrTarget == "" && *volumeTarget == "" {
		u.PrintError(fmt.Errorf("at least one of --mbr or --volume must be provided"))
		u.PrintUsage()
		os.Exit(1)
	}

	level := logging.LEVEL_INFO
	if *debug {
		level = logging.LEVEL_DEBUG
	}
	if *trace {
		level = logging.LEVEL_TRACE
	}
	logger := logging.NewSimpleLogger(os.Stderr, level, !*noColor)

	opts := []options.Option{
		options.WithLogger(logger),
		options.WithFAT32Check(*checkFAT32),
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

	var spinner *yacspin.Spinner
	if !*quiet && !*debug && !*trace && term.IsTerminal(int(os.Stdout.Fd())) {
		var err error
		spinner, err = InitializeSpinner()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize spinner: %v\n", err)
			fmt.Fprintf(os.Stderr, "Progress updates will be disabled.\n")
		} else {
			opts = append(opts, options.WithProgress(CreateProgressCallback(spinner, *volumeTarget)))
		}
	}

	inst, err := pcboot.Open(*bundleDir, opts...)
	if err != nil {
		fail(spinner, logger, err, "Failed to load boot image bundle")
	}

	placement, err := pcboot.Install(inst, *mbrTarget, *volumeTarget)
	if err != nil {
		fail(spinner, logger, err, "Install failed")
	}

	summary := summarize(*mbrTarget, placement)
	if spinner != nil {
		spinner.StopMessage(" " + summary)
		spinner.Stop()
		return
	}
	fmt.Println(summary)
}

func fail(spinner *yacspin.Spinner, logger logr.Logger, err error, msg string) {
	if spinner != nil {
		spinner.StopFailMessage(fmt.Sprintf(" %s: %v", msg, err))
		spinner.StopFail()
	} else {
		logger.Error(err, msg)
	}
	os.Exit(1)
}

func summarize(mbrTarget string, p *installer.Placement) string {
	var s string
	if mbrTarget != "" {
		s = fmt.Sprintf("MBR boot code installed on %s", mbrTarget)
	}
	if p != nil {
		written := uint64(3+len(p.Stage1Sectors)) * consts.SECTOR_SIZE
		if s != "" {
			s += "; "
		}
		s += fmt.Sprintf("reserved area initialized (%s written, post-VBR sector %d, backup VBR sector %d)",
			humanize.IBytes(written), p.PostVBRSector, p.Layout.BackupVBRSector)
	}
	return s
}
