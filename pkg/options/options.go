package options

import (
	"github.com/go-logr/logr"
)

// ProgressCallback defines the signature for progress update functions.
type ProgressCallback func(
	step string,
	sectorsWritten int,
	totalSectors int,
)

// Options represents the options for an install run
type Options struct {
	Logger           logr.Logger
	ProgressCallback ProgressCallback
	CheckFAT32       bool
	Partition        int
	Sync             bool
	Stage1Finalized  bool
}

// Option represents a function that modifies the Options
type Option func(*Options)

// Default returns the options an install run starts from.
func Default() Options {
	return Options{
		Logger: logr.Discard(),
		Sync:   true,
	}
}

// Apply builds Options from the defaults and opts.
func Apply(opts ...Option) Options {
	o := Default()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithProgress sets a progress callback function that will be called after every sector written.
// Parameters:
// - step: The install step currently running ("mbr", "vbr", "backup-vbr", "post-vbr", "stage1").
// - sectorsWritten: The number of sectors written so far for the current target.
// - totalSectors: The total number of sectors the current target will receive.
func WithProgress(callback ProgressCallback) Option {
	return func(o *Options) {
		o.ProgressCallback = callback
	}
}

// WithLogger sets the Logger for the install run
func WithLogger(logger logr.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithFAT32Check sets whether the volume must parse as FAT32 before anything is written to it.
func WithFAT32Check(enabled bool) Option {
	return func(o *Options) {
		o.CheckFAT32 = enabled
	}
}

// WithPartition selects a primary MBR partition (1-4) of the volume target. When set, the volume target is treated
// as a whole-disk image and the reserved area is located at the start of that partition.
func WithPartition(index int) Option {
	return func(o *Options) {
		o.Partition = index
	}
}

// WithSync sets whether the target is flushed to stable storage once a target is written.
func WithSync(enabled bool) Option {
	return func(o *Options) {
		o.Sync = enabled
	}
}

// WithStage1Finalized declares the bundle's stage1 image as already padded and checksummed. The image is then
// verified instead of finalized.
func WithStage1Finalized(finalized bool) Option {
	return func(o *Options) {
		o.Stage1Finalized = finalized
	}
}
