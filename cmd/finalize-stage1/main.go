package main

import (
	"fmt"
	"os"

	"github.com/bgrewell/pcboot-kit"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/stage1"
	"github.com/bgrewell/usage"
	"github.com/dustin/go-humanize"
)

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("finalize-stage1"),
		usage.WithApplicationDescription("finalize-stage1 pads a raw stage1 image to 28 sectors and appends its CRC-32C trailer so the VBR can validate it at boot."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	input := u.AddArgument(1, "input", "The raw stage1 image", "")
	output := u.AddArgument(2, "output", "Where the finalized image is written", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if input == nil || *input == "" || output == nil || *output == "" {
		u.PrintError(fmt.Errorf("both <input> and <output> must be provided"))
		os.Exit(1)
	}

	raw, err := os.ReadFile(*input)
	if err != nil {
		u.PrintError(fmt.Errorf("failed to read stage1 image: %w", err))
		os.Exit(1)
	}

	img, err := pcboot.FinalizeStage1(raw)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
	sum, err := stage1.Checksum(img)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	if err := os.WriteFile(*output, img, 0o644); err != nil {
		u.PrintError(fmt.Errorf("failed to write finalized image: %w", err))
		os.Exit(1)
	}

	fmt.Printf("%s: %s of %s used, checksum %08x\n", *output,
		humanize.IBytes(uint64(len(raw))), humanize.IBytes(consts.STAGE1_PAYLOAD_SIZE), sum)
}
