package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/bgrewell/pcboot-kit"
	"github.com/bgrewell/pcboot-kit/pkg/crc32c"
	"github.com/bgrewell/usage"
)

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("crc32c"),
		usage.WithApplicationDescription("crc32c computes the CRC-32C (Castagnoli) checksum of a file, the same checksum the VBR uses to validate stage1."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	raw := u.AddBooleanOption("r", "raw-output", false, "Write the 4 checksum bytes (little-endian) to stdout instead of hex text", "", nil)
	input := u.AddArgument(1, "filename", "The file to checksum", "")
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	if input == nil || *input == "" {
		u.PrintError(fmt.Errorf("the file to checksum <filename> must be provided"))
		os.Exit(1)
	}

	sum, err := pcboot.ChecksumFile(*input)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	if *raw {
		out := make([]byte, crc32c.Size)
		binary.LittleEndian.PutUint32(out, sum)
		if _, err := os.Stdout.Write(out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write checksum: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Printf("%x\n", sum)
}
