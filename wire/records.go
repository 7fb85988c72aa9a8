// Package wire implements bit-exact parsing and serialization of the PKZIP binary
// records: the local file header, central directory header, data descriptor,
// end-of-central-directory record, and the ZIP64 extensions of the latter.
//
// Every record pairs a plain data struct with pure Parse/Serialize functions over byte
// slices; there is no class hierarchy. Variable-length trailing data (name, extra,
// comment) is supplied by the caller so the parser stays independent of the backing
// that produced the bytes.
package wire

import "time"

// Signatures, little-endian on the wire (spec.md §6).
const (
	SigLocalFileHeader  uint32 = 0x04034b50
	SigCentralDirHeader uint32 = 0x02014b50
	SigDataDescriptor   uint32 = 0x08074b50
	SigEOCD             uint32 = 0x06054b50
	SigZip64EOCDLocator uint32 = 0x07064b50
	SigZip64EOCDRecord  uint32 = 0x06064b50
)

// Fixed record sizes, not including the variable name/extra/comment trailers.
const (
	LocalFileHeaderLen  = 30
	CentralDirHeaderLen = 46
	DataDescriptorLen   = 16 // signature + crc32 + 2x uint32 sizes
	DataDescriptor64Len = 24 // signature + crc32 + 2x uint64 sizes
	EOCDLen             = 22
	Zip64EOCDLocatorLen = 20
	Zip64EOCDRecordLen  = 56 // fixed portion, before any extensible data sector
)

// Compression methods this library understands (spec.md Non-goals: no others).
const (
	MethodStored  uint16 = 0
	MethodDeflate uint16 = 8
)

// General-purpose bit flags used by this library.
const (
	FlagDataDescriptor uint16 = 1 << 3
	FlagUTF8           uint16 = 1 << 11
)

// Version-needed/made-by values.
const (
	Version20 uint16 = 20 // 2.0, base feature set
	Version45 uint16 = 45 // 4.5, ZIP64
)

// Host OS byte encoded in the high byte of VersionMadeBy.
const (
	HostDOS  uint16 = 0
	HostUnix uint16 = 3
)

// Sentinels signaling "see the ZIP64 extra / EOCD64 for the real value".
const (
	Sentinel16 uint16 = 0xFFFF
	Sentinel32 uint32 = 0xFFFFFFFF
)

// Zip64ExtraTag is the only extra-field tag this library interprets; every other tag
// is forwarded verbatim (spec.md Non-goals).
const Zip64ExtraTag uint16 = 0x0001

// LocalFileHeader is the 30-byte fixed record that precedes each entry's payload.
type LocalFileHeader struct {
	VersionNeeded    uint16
	Flags            uint16
	Method           uint16
	ModTime          uint16
	ModDate          uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	Name             string
	Extra            []byte
}

// CentralDirectoryHeader is the 46-byte fixed record, one per entry in the central
// directory.
type CentralDirectoryHeader struct {
	VersionMadeBy      uint16
	VersionNeeded      uint16
	Flags              uint16
	Method             uint16
	ModTime            uint16
	ModDate            uint16
	CRC32              uint32
	CompressedSize     uint32
	UncompressedSize   uint32
	DiskNumberStart    uint16
	InternalAttrs      uint16
	ExternalAttrs      uint32
	LocalHeaderOffset  uint32
	Name               string
	Extra              []byte
	Comment            string
}

// DataDescriptor is the optional trailer written after an entry's payload when the
// streaming bit (flag bit 3) is set.
type DataDescriptor struct {
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	// Zip64 selects the 24-byte (8-byte sizes) layout instead of the 16-byte one.
	Zip64 bool
}

// EOCDRecord is the 22-byte fixed end-of-central-directory record.
type EOCDRecord struct {
	DiskNumber    uint16
	DiskWithCD    uint16
	EntriesOnDisk uint16
	EntriesTotal  uint16
	CDSize        uint32
	CDOffset      uint32
	Comment       []byte
}

// Zip64EOCDLocator is the 20-byte record immediately preceding EOCD when a ZIP64
// EOCD record is present.
type Zip64EOCDLocator struct {
	DiskWithZip64EOCD uint32
	Zip64EOCDOffset   uint64
	TotalDisks        uint32
}

// Zip64EOCDRecord is the variable-size ZIP64 end-of-central-directory record; this
// library writes only the fixed 56-byte portion and no extensible data sector.
type Zip64EOCDRecord struct {
	VersionMadeBy uint16
	VersionNeeded uint16
	DiskNumber    uint32
	DiskWithCD    uint32
	EntriesOnDisk uint64
	EntriesTotal  uint64
	CDSize        uint64
	CDOffset      uint64
}

// Zip64Extra is the tag-0x0001 extra block. Only the fields that were sentinel'd in
// the fixed-size record are present; FindZip64Extra/SerializeZip64Extra are told
// which via a Zip64Present, per spec.md §4.2: "contains whichever of
// {uncomp-size, comp-size, local-offset, disk-start} were sentinel'd ... in that
// order".
type Zip64Extra struct {
	UncompressedSize  uint64
	CompressedSize    uint64
	LocalHeaderOffset uint64
	DiskStart         uint32
}

// MSDosTime packs a UTC time into the MS-DOS date/time pair used on the wire
// (spec.md §4.4): date = ((year-1980)<<9)|(month<<5)|day, time =
// (hour<<11)|(minute<<5)|(second/2). Years outside [1980, 2099] clamp at the
// endpoints.
func MSDosTime(t time.Time) (date, mtime uint16) {
	t = t.UTC()
	year := t.Year()
	switch {
	case year < 1980:
		year, t = 1980, time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)
	case year > 2099:
		year, t = 2099, time.Date(2099, 12, 31, 23, 59, 58, 0, time.UTC)
	}

	date = uint16(year-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	mtime = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return
}

// MSDosTimeToTime converts an MS-DOS date/time pair into a UTC time.Time. Resolution
// is 2 seconds.
func MSDosTimeToTime(date, mtime uint16) time.Time {
	return time.Date(
		int(date>>9)+1980,
		time.Month(date>>5&0xf),
		int(date&0x1f),
		int(mtime>>11),
		int(mtime>>5&0x3f),
		int(mtime&0x1f)*2,
		0,
		time.UTC,
	)
}
