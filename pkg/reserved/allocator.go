// Package reserved hands out free sectors of a volume's reserved area.
//
// Which sectors are free depends on where the file system put its FSInfo sector and backup boot sector, so
// availability is modelled as the complement of a caller-supplied reserved set rather than a fixed map. Nothing
// is reserved implicitly: callers that want sector 0 kept free must pass it.
package reserved

import (
	"fmt"

	"github.com/bgrewell/pcboot-kit/pkg/common"
)

// Allocator is a cursor over sectors [0, size). Each call to Next returns the smallest index that is neither
// reserved nor already drawn. An Allocator is not safe for concurrent use.
type Allocator struct {
	size     int
	reserved map[int]struct{}
	cursor   int
	drawn    int
}

// NewAllocator creates an Allocator over size sectors with the given indices excluded. Every reserved index must
// lie in [0, size).
func NewAllocator(size int, reserved ...int) (*Allocator, error) {
	if size <= 0 {
		return nil, common.Validationf("create allocator", "reserved area size must be positive, got %d", size)
	}
	set := make(map[int]struct{}, len(reserved))
	for _, s := range reserved {
		if s < 0 || s >= size {
			return nil, &common.ValidationError{
				Op:  "create allocator",
				Err: fmt.Errorf("reserved sector %d is outside the reserved area [0, %d)", s, size),
			}
		}
		set[s] = struct{}{}
	}
	return &Allocator{size: size, reserved: set}, nil
}

// Next draws the next free sector. It returns an *common.ExhaustionError once every free index has been drawn.
func (a *Allocator) Next() (int, error) {
	for a.cursor < a.size {
		s := a.cursor
		a.cursor++
		if _, ok := a.reserved[s]; ok {
			continue
		}
		a.drawn++
		return s, nil
	}
	return 0, &common.ExhaustionError{Size: a.size, Drawn: a.drawn}
}

// Remaining reports how many sectors can still be drawn.
func (a *Allocator) Remaining() int {
	n := 0
	for s := a.cursor; s < a.size; s++ {
		if _, ok := a.reserved[s]; !ok {
			n++
		}
	}
	return n
}

// Drawn reports how many sectors have been handed out.
func (a *Allocator) Drawn() int {
	return a.drawn
}
