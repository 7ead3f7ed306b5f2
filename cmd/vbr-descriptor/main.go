package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bgrewell/pcboot-kit/pkg/consts"
	"github.com/bgrewell/pcboot-kit/pkg/vbrcfg"
	"github.com/bgrewell/usage"
)

func main() {

	u := usage.NewUsage(
		usage.WithApplicationName("vbr-descriptor"),
		usage.WithApplicationDescription("vbr-descriptor writes vbr.cfg, the byte offset inside the VBR that the installer patches with the post-VBR sector index. The offset comes from an explicit load address or from nm output of the VBR ELF read on stdin."),
	)
	help := u.AddBooleanOption("h", "help", false, "Display this help message", "", nil)
	address := u.AddStringOption("a", "address", "", "Load address of the post-VBR sector symbol (hex); nm output is read from stdin when omitted", "", nil)
	symbol := u.AddStringOption("s", "symbol", consts.VBR_POST_SECTOR_SYMBOL, "Symbol to look for in nm output", "", nil)
	output := u.AddStringOption("o", "output", "", "Where vbr.cfg is written (stdout when omitted)", "", nil)
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *help {
		u.PrintUsage()
		os.Exit(0)
	}

	cfg, err := descriptor(*address, *symbol, os.Stdin)
	if err != nil {
		u.PrintError(err)
		os.Exit(1)
	}

	if *output == "" {
		fmt.Print(cfg.String())
		return
	}
	if err := cfg.WriteFile(*output); err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
}

func descriptor(address, symbol string, nm io.Reader) (vbrcfg.Config, error) {
	if address == "" {
		return vbrcfg.FromNMOutput(nm, symbol)
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	addr, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return vbrcfg.Config{}, fmt.Errorf("invalid --address %q: %w", address, err)
	}
	return vbrcfg.FromSymbolAddress(addr)
}
