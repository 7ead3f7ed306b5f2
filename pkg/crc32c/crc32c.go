// Package crc32c computes the CRC-32C (Castagnoli) checksum that protects the stage1 image.
//
// The table-driven form mirrors the routine the stage1 loader runs before it jumps into the image, so the
// two must agree bit for bit: reflected polynomial 0x82F63B78, accumulator seeded with 0xFFFFFFFF, one table
// lookup per byte and a final inversion.
package crc32c

import (
	"hash"

	"github.com/bgrewell/pcboot-kit/pkg/consts"
)

// Size of a CRC-32C checksum in bytes.
const Size = 4

// Table is a 256-entry lookup table for the reflected polynomial.
type Table [256]uint32

var castagnoli = MakeTable(consts.CRC32C_POLYNOMIAL)

// MakeTable builds the lookup table for a reflected polynomial.
func MakeTable(poly uint32) *Table {
	t := new(Table)
	for i := range t {
		crc := uint32(i)
		for j := 0; j < 8; j++ {
			if crc&1 == 1 {
				crc = (crc >> 1) ^ poly
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Update returns the result of adding the bytes in p to the raw (non-inverted) accumulator crc.
func Update(crc uint32, tab *Table, p []byte) uint32 {
	for _, b := range p {
		crc = tab[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}

// Checksum returns the CRC-32C of data.
func Checksum(data []byte) uint32 {
	return ^Update(0xFFFFFFFF, castagnoli, data)
}

type digest struct {
	crc uint32
	tab *Table
}

// New returns a hash.Hash32 computing the CRC-32C checksum. Sum appends the big-endian form, as hash/crc32 does.
func New() hash.Hash32 {
	d := &digest{tab: castagnoli}
	d.Reset()
	return d
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = 0xFFFFFFFF }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, d.tab, p)
	return len(p), nil
}

func (d *digest) Sum32() uint32 { return ^d.crc }

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}
