// Package zipkit implements a ZIP archive library: open, iterate, look up, add,
// remove, and extract entries against either a file on disk or an in-memory buffer,
// with ZIP64 support for archives or entries that exceed the 32-bit limits.
package zipkit

import (
	"fmt"
	"io"
	"time"

	"github.com/nguyengg/zipkit/wire"
)

// Kind classifies what an Entry's payload represents, derived from UNIX mode bits
// carried in the central directory header's external attributes (falling back to a
// trailing slash in the name when no UNIX mode is present).
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Unix mode bits this library interprets when deriving Kind and Attrs from a central
// directory header's external attributes, grounded on the corpus's struct.go.
const (
	unixIFMT   = 0xf000
	unixIFLNK  = 0xa000
	unixIFDIR  = 0x4000
	unixIFREG  = 0x8000
	hostUnix   = wire.HostUnix
	msdosDir   = 0x10
	msdosRO    = 0x01
)

// Entry is the catalog's view of one record in an archive: the metadata carried by
// its central directory header, plus enough positional information to locate and
// read its payload. Entry is derived data; mutate it only through AddEntry,
// RemoveEntry, and the Archive methods that build it from parsed records.
type Entry struct {
	// Name is the entry's path within the archive, always forward-slash
	// separated and never absolute.
	Name string
	// Comment is the entry's free-form comment.
	Comment string
	// Kind classifies the entry as a file, directory, or symlink.
	Kind Kind
	// Mode carries the UNIX permission bits (e.g. 0644, 0755). For entries from a
	// non-UNIX host it defaults to 0755 for directories and 0644 for files, with
	// the write bits cleared when the MS-DOS read-only attribute is set.
	Mode uint32
	// ModTime is the entry's last-modified time, reconstructed from the MS-DOS
	// date/time pair at 2-second resolution.
	ModTime time.Time
	// Method is the compression method: wire.MethodStored or wire.MethodDeflate.
	Method uint16
	// CRC32 is the checksum of the uncompressed payload.
	CRC32 uint32
	// CompressedSize and UncompressedSize are the entry's payload sizes, already
	// resolved from any ZIP64 extra field.
	CompressedSize   uint64
	UncompressedSize uint64
	// NonUTF8 mirrors the general-purpose UTF-8 flag; when false, Name and
	// Comment are assumed to be UTF-8.
	NonUTF8 bool

	// localHeaderOffset is the byte offset of this entry's local file header
	// within the archive.
	localHeaderOffset uint64
	// flags is the general-purpose bit flags written to both the local file
	// header and the central directory header, so the two stay in agreement
	// (invariant I2). Computed by AddEntry (honoring WithFlags when given) or
	// carried over verbatim from a parsed central directory header.
	flags uint16
}

// IsDir reports whether the entry is a directory, either by explicit Kind or by a
// trailing slash in Name.
func (e *Entry) IsDir() bool {
	return e.Kind == KindDirectory || (len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/')
}

// entryFromCDH derives an Entry from a parsed central directory header, resolving
// ZIP64 overflow fields and UNIX mode bits, then cross-checks the entry's local file
// header against it (name, method, flags, and — when the entry wasn't written with a
// streaming data descriptor — CRC-32 and sizes), per the requirement that the two
// headers agree.
func entryFromCDH(ra io.ReaderAt, h wire.CentralDirectoryHeader) (Entry, error) {
	e := Entry{
		Name:             h.Name,
		Comment:          h.Comment,
		Method:           h.Method,
		CRC32:            h.CRC32,
		CompressedSize:   uint64(h.CompressedSize),
		UncompressedSize: uint64(h.UncompressedSize),
		NonUTF8:          h.Flags&wire.FlagUTF8 == 0,
		flags:            h.Flags,
	}

	present := wire.Zip64Present{
		UncompressedSize:  h.UncompressedSize == wire.Sentinel32,
		CompressedSize:    h.CompressedSize == wire.Sentinel32,
		LocalHeaderOffset: h.LocalHeaderOffset == wire.Sentinel32,
		DiskStart:         h.DiskNumberStart == wire.Sentinel16,
	}
	localOffset := uint64(h.LocalHeaderOffset)
	if present.Any() {
		z, ok := wire.FindZip64Extra(h.Extra, present)
		if !ok {
			return Entry{}, fmt.Errorf("%w: %s: missing zip64 extra field for overflowed size/offset", ErrCorruptArchive, h.Name)
		}
		if present.UncompressedSize {
			e.UncompressedSize = z.UncompressedSize
		}
		if present.CompressedSize {
			e.CompressedSize = z.CompressedSize
		}
		if present.LocalHeaderOffset {
			localOffset = z.LocalHeaderOffset
		}
	}
	e.localHeaderOffset = localOffset

	if err := verifyLocalFileHeader(ra, localOffset, h); err != nil {
		return Entry{}, err
	}

	e.ModTime = wire.MSDosTimeToTime(h.ModDate, h.ModTime)
	e.Kind, e.Mode = deriveKindAndMode(h)

	return e, nil
}

// verifyLocalFileHeader reads the local file header at offset and checks that it
// agrees with its central directory header on name, method, and flags, and — unless
// the entry used a streaming data descriptor, in which case the local file header's
// own CRC-32/size fields are legitimately zero — on CRC-32 and sizes too.
func verifyLocalFileHeader(ra io.ReaderAt, offset uint64, h wire.CentralDirectoryHeader) error {
	fixed := make([]byte, wire.LocalFileHeaderLen)
	if _, err := ra.ReadAt(fixed, int64(offset)); err != nil {
		return fmt.Errorf("%w: reading local file header for %s: %w", ErrCorruptArchive, h.Name, err)
	}
	nameLen := int(uint16(fixed[26]) | uint16(fixed[27])<<8)
	extraLen := int(uint16(fixed[28]) | uint16(fixed[29])<<8)

	buf := make([]byte, wire.LocalFileHeaderLen+nameLen+extraLen)
	if _, err := ra.ReadAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("%w: reading local file header for %s: %w", ErrCorruptArchive, h.Name, err)
	}

	lfh, _, err := wire.ParseLocalFileHeader(buf)
	if err != nil {
		return fmt.Errorf("%w: parsing local file header for %s: %w", ErrCorruptArchive, h.Name, err)
	}

	if lfh.Name != h.Name {
		return fmt.Errorf("%w: %s: local file header name %q disagrees with central directory", ErrCorruptArchive, h.Name, lfh.Name)
	}
	if lfh.Method != h.Method {
		return fmt.Errorf("%w: %s: local file header method %d disagrees with central directory method %d", ErrCorruptArchive, h.Name, lfh.Method, h.Method)
	}
	if lfh.Flags != h.Flags {
		return fmt.Errorf("%w: %s: local file header flags disagree with central directory", ErrCorruptArchive, h.Name)
	}

	if lfh.Flags&wire.FlagDataDescriptor != 0 {
		return nil
	}
	if lfh.CRC32 != h.CRC32 {
		return fmt.Errorf("%w: %s: local file header crc32 disagrees with central directory", ErrCorruptArchive, h.Name)
	}
	if lfh.CompressedSize != wire.Sentinel32 && h.CompressedSize != wire.Sentinel32 && lfh.CompressedSize != h.CompressedSize {
		return fmt.Errorf("%w: %s: local file header compressed size disagrees with central directory", ErrCorruptArchive, h.Name)
	}
	if lfh.UncompressedSize != wire.Sentinel32 && h.UncompressedSize != wire.Sentinel32 && lfh.UncompressedSize != h.UncompressedSize {
		return fmt.Errorf("%w: %s: local file header uncompressed size disagrees with central directory", ErrCorruptArchive, h.Name)
	}

	return nil
}

// deriveKindAndMode inspects VersionMadeBy's host byte and external attributes to
// recover UNIX permission bits and entry kind, falling back to a trailing slash in
// Name when the producing tool didn't record UNIX mode bits at all.
func deriveKindAndMode(h wire.CentralDirectoryHeader) (Kind, uint32) {
	var kind Kind
	var mode uint32

	if h.VersionMadeBy>>8 == hostUnix {
		unixMode := h.ExternalAttrs >> 16
		mode = unixMode & 0777
		switch unixMode & unixIFMT {
		case unixIFDIR:
			kind = KindDirectory
		case unixIFLNK:
			kind = KindSymlink
		default:
			kind = KindFile
		}
		return kind, mode
	}

	if h.ExternalAttrs&msdosDir != 0 {
		kind = KindDirectory
		mode = 0755
	} else {
		kind = KindFile
		mode = 0644
	}
	if h.ExternalAttrs&msdosRO != 0 {
		mode &^= 0222
	}

	if len(h.Name) > 0 && h.Name[len(h.Name)-1] == '/' {
		kind = KindDirectory
	}

	return kind, mode
}

// externalAttrsFor packs Kind and Mode into a UNIX-host external attributes value,
// mirroring the corpus's FileHeader.SetMode.
func externalAttrsFor(kind Kind, mode uint32) uint32 {
	var unixMode uint32
	switch kind {
	case KindDirectory:
		unixMode = unixIFDIR
	case KindSymlink:
		unixMode = unixIFLNK
	default:
		unixMode = unixIFREG
	}
	unixMode |= mode & 0777

	attrs := unixMode << 16
	if kind == KindDirectory {
		attrs |= msdosDir
	}
	if mode&0200 == 0 {
		attrs |= msdosRO
	}
	return attrs
}
