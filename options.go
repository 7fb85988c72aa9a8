package zipkit

import (
	"github.com/klauspost/compress/flate"

	"github.com/nguyengg/zipkit/deflate"
	"github.com/nguyengg/zipkit/wire"
)

// Options configures Open, AddEntry, and ExtractEntry calls. The zero value is
// usable; fields are filled in with their documented defaults lazily.
type Options struct {
	// BufferSize bounds how much of an entry's payload is held in memory at
	// once while streaming compression, decompression, or raw copies.
	// Defaults to deflate.DefaultBufferSize.
	BufferSize int
	// Level is the flate compression level used by AddEntry when Method is
	// wire.MethodDeflate. Defaults to flate.DefaultCompression.
	Level int
	// MaxCentralDirectorySize caps how large a central directory Open will
	// parse, guarding against a truncated or hostile EOCD record claiming an
	// implausible size. Zero means no cap.
	MaxCentralDirectorySize int64
	// Flags, when non-nil, overrides the general-purpose bit flags AddEntry
	// would otherwise compute automatically (currently just the UTF-8 bit,
	// general-purpose bit 11, set when the name isn't plain ASCII).
	Flags *uint16
	// Zip64EntryThreshold is the entry count at or above which the central
	// directory switches to a ZIP64 EOCD record. Defaults to wire.Sentinel16,
	// the real format limit; lower only to exercise the ZIP64 write/read path
	// in tests without building a 64k-entry archive.
	Zip64EntryThreshold uint64
	// Zip64SizeThreshold is the size/offset value at or above which a field
	// switches to its ZIP64 extra representation. Defaults to wire.Sentinel32,
	// the real format limit; lower only for tests.
	Zip64SizeThreshold uint64
}

func (o *Options) setDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = deflate.DefaultBufferSize
	}
	if o.Level == 0 {
		o.Level = flate.DefaultCompression
	}
	if o.Zip64EntryThreshold == 0 {
		o.Zip64EntryThreshold = uint64(wire.Sentinel16)
	}
	if o.Zip64SizeThreshold == 0 {
		o.Zip64SizeThreshold = uint64(wire.Sentinel32)
	}
}

// OptFn mutates Options, the functional-options pattern used throughout this module.
type OptFn func(*Options)

// WithBufferSize overrides the streaming buffer size.
func WithBufferSize(n int) OptFn {
	return func(o *Options) { o.BufferSize = n }
}

// WithLevel overrides the DEFLATE compression level for AddEntry.
func WithLevel(level int) OptFn {
	return func(o *Options) { o.Level = level }
}

// WithMaxCentralDirectorySize caps the central directory size Open will accept.
func WithMaxCentralDirectorySize(n int64) OptFn {
	return func(o *Options) { o.MaxCentralDirectorySize = n }
}

// WithFlags overrides the general-purpose bit flags AddEntry writes for an entry,
// instead of letting it compute the UTF-8 bit automatically from the entry's name.
func WithFlags(flags uint16) OptFn {
	return func(o *Options) { o.Flags = &flags }
}

// WithZip64EntryThreshold overrides the entry count at or above which the central
// directory switches to a ZIP64 EOCD record.
func WithZip64EntryThreshold(n uint64) OptFn {
	return func(o *Options) { o.Zip64EntryThreshold = n }
}

// WithZip64SizeThreshold overrides the size/offset value at or above which a field
// switches to its ZIP64 extra representation.
func WithZip64SizeThreshold(n uint64) OptFn {
	return func(o *Options) { o.Zip64SizeThreshold = n }
}

func resolveOptions(optFns ...OptFn) Options {
	var o Options
	for _, fn := range optFns {
		fn(&o)
	}
	o.setDefaults()
	return o
}
