// Package vbrcfg reads and writes the VBR descriptor produced by the boot record build.
//
// The descriptor is a single line, post_VBR_sector=<n>, where n is the byte offset inside the VBR sector at which
// the installer stores the index of the post-VBR sector. The build derives n from the load address of a VBR
// symbol; this package only validates and carries the integer.
package vbrcfg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/bgrewell/pcboot-kit/pkg/consts"
)

// Config is the parsed VBR descriptor.
type Config struct {
	// PostVBRSectorOffset is the byte offset within the VBR sector patched with the post-VBR sector index.
	PostVBRSectorOffset int
}

// String renders the descriptor line, newline terminated.
func (c Config) String() string {
	return fmt.Sprintf("%s=%d\n", consts.VBR_CONFIG_KEY, c.PostVBRSectorOffset)
}

// Validate checks the offset falls inside one sector.
func (c Config) Validate() error {
	if c.PostVBRSectorOffset < 0 || c.PostVBRSectorOffset >= consts.SECTOR_SIZE {
		return common.Validationf("validate VBR descriptor",
			"%s=%d is outside [0, %d)", consts.VBR_CONFIG_KEY, c.PostVBRSectorOffset, consts.SECTOR_SIZE)
	}
	return nil
}

// FromSymbolAddress converts the absolute load address of the post-VBR sector variable into a descriptor.
func FromSymbolAddress(address uint64) (Config, error) {
	if address < consts.VBR_BASE_ADDRESS || address >= consts.VBR_BASE_ADDRESS+consts.SECTOR_SIZE {
		return Config{}, common.Validationf("build VBR descriptor",
			"symbol address %#x is outside the VBR sector [%#x, %#x)",
			address, consts.VBR_BASE_ADDRESS, consts.VBR_BASE_ADDRESS+consts.SECTOR_SIZE)
	}
	return Config{PostVBRSectorOffset: int(address - consts.VBR_BASE_ADDRESS)}, nil
}

// FromNMOutput scans nm output for symbol and converts its address with FromSymbolAddress. Exactly one line may
// mention the symbol.
func FromNMOutput(r io.Reader, symbol string) (Config, error) {
	var (
		match string
		found bool
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := scanner.Text()
		if !strings.Contains(text, symbol) {
			continue
		}
		if found {
			return Config{}, common.Validationf("build VBR descriptor", "symbol %s is listed more than once", symbol)
		}
		match, found = text, true
	}
	if err := scanner.Err(); err != nil {
		return Config{}, &common.ResourceError{Op: "read", Path: "symbol table", Err: err}
	}
	if !found {
		return Config{}, &common.ResourceError{Op: "find " + symbol + " in", Path: "symbol table", Err: fmt.Errorf("missing symbol")}
	}

	fields := strings.Fields(match)
	address, err := strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return Config{}, &common.ValidationError{Op: "build VBR descriptor", Err: fmt.Errorf("bad address in %q: %w", match, err)}
	}
	return FromSymbolAddress(address)
}

// Parse reads a descriptor. Blank lines and lines starting with '#' are ignored; the key must appear exactly once.
func Parse(r io.Reader) (Config, error) {
	var (
		cfg   Config
		found bool
	)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok || key != consts.VBR_CONFIG_KEY {
			return Config{}, common.Validationf("parse VBR descriptor", "line %d: unexpected entry %q", line, text)
		}
		if found {
			return Config{}, common.Validationf("parse VBR descriptor", "line %d: duplicate %s entry", line, key)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, &common.ValidationError{
				Op:  "parse VBR descriptor",
				Err: fmt.Errorf("line %d: invalid %s value %q: %w", line, key, value, err),
			}
		}
		cfg.PostVBRSectorOffset = n
		found = true
	}
	if err := scanner.Err(); err != nil {
		return Config{}, &common.ResourceError{Op: "read", Path: "VBR descriptor", Err: err}
	}
	if !found {
		return Config{}, &common.ResourceError{
			Op:   "parse",
			Path: "VBR descriptor",
			Err:  fmt.Errorf("missing %s entry", consts.VBR_CONFIG_KEY),
		}
	}
	return cfg, cfg.Validate()
}

// ParseFile reads the descriptor stored at path.
func ParseFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, &common.ResourceError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// WriteFile stores the descriptor at path.
func (c Config) WriteFile(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(c.String()), 0o644); err != nil {
		return &common.ResourceError{Op: "write", Path: path, Err: err}
	}
	return nil
}
