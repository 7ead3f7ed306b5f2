package reserved

import (
	"errors"
	"testing"

	"github.com/bgrewell/pcboot-kit/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, a *Allocator) []int {
	t.Helper()
	var out []int
	for {
		s, err := a.Next()
		if err != nil {
			var exhausted *common.ExhaustionError
			require.True(t, errors.As(err, &exhausted), "unexpected error %v", err)
			return out
		}
		out = append(out, s)
	}
}

func complement(size int, reserved ...int) []int {
	skip := map[int]bool{}
	for _, r := range reserved {
		skip[r] = true
	}
	var out []int
	for i := 0; i < size; i++ {
		if !skip[i] {
			out = append(out, i)
		}
	}
	return out
}

func TestAllocatorSequence(t *testing.T) {
	tests := []struct {
		name     string
		reserved []int
	}{
		{"nothing reserved", nil},
		{"fat32 defaults", []int{0, 1, 6}},
		{"duplicates", []int{0, 0, 6, 6}},
		{"tail reserved", []int{0, 30, 31}},
		{"all but one", complement(32, 17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAllocator(32, tt.reserved...)
			require.NoError(t, err)
			assert.Equal(t, len(complement(32, tt.reserved...)), a.Remaining())
			assert.Equal(t, complement(32, tt.reserved...), drain(t, a))
			assert.Equal(t, 0, a.Remaining())

			// Exhaustion is sticky.
			_, err = a.Next()
			assert.Error(t, err)
		})
	}
}

// TestAllocatorPrefixConsistency checks that drawing k then m values matches drawing k+m from a fresh cursor.
func TestAllocatorPrefixConsistency(t *testing.T) {
	reserved := []int{0, 1, 6}
	full, err := NewAllocator(32, reserved...)
	require.NoError(t, err)
	all := drain(t, full)

	for k := 0; k <= len(all); k++ {
		a, err := NewAllocator(32, reserved...)
		require.NoError(t, err)
		for i := 0; i < k; i++ {
			_, err := a.Next()
			require.NoError(t, err)
		}
		assert.Equal(t, k, a.Drawn())
		rest := drain(t, a)
		require.Len(t, rest, len(all)-k)
		for i, s := range rest {
			assert.Equal(t, all[k+i], s)
		}
	}
}

// TestAllocatorPostVBRThenStage mirrors the installer: one post-VBR draw then the stage1 sectors.
func TestAllocatorPostVBRThenStage(t *testing.T) {
	a, err := NewAllocator(32, 0, 1, 6)
	require.NoError(t, err)

	post, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, post)

	var stage []int
	for i := 0; i < 28; i++ {
		s, err := a.Next()
		require.NoError(t, err)
		stage = append(stage, s)
	}
	assert.Equal(t, []int{3, 4, 5, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31}, stage)

	_, err = a.Next()
	var exhausted *common.ExhaustionError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 32, exhausted.Size)
	assert.Equal(t, 29, exhausted.Drawn)
}

func TestNewAllocatorRejectsOutOfRange(t *testing.T) {
	for _, bad := range []int{-1, 32, 1000} {
		_, err := NewAllocator(32, 0, bad)
		var verr *common.ValidationError
		assert.True(t, errors.As(err, &verr), "reserved %d", bad)
	}
	_, err := NewAllocator(0)
	assert.Error(t, err)
}
