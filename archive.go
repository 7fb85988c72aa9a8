package zipkit

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/nguyengg/zipkit/backing"
	"github.com/nguyengg/zipkit/wire"
)

// State is the archive's position in its open/close lifecycle.
type State int

const (
	StateClosed State = iota
	StateOpenedRead
	StateOpenedUpdate
	StateOpenedCreate
)

// Archive is an open ZIP archive backed by either a file on disk or an in-memory
// buffer. An Archive is not safe for concurrent use; every operation against one
// Archive must be serialized by the caller.
type Archive struct {
	backing backing.Backing
	state   State
	opts    Options

	catalog *catalog
	comment []byte

	// cdOffset/cdSize describe where the central directory currently sits in
	// the backing, used by RemoveEntry to compact the payload region and by
	// every mutation to know where to start re-writing the tail.
	cdOffset uint64
	cdSize   uint64
}

// OpenRead opens an existing archive on disk for read-only iteration, lookup, and
// extraction.
func OpenRead(name string, optFns ...OptFn) (*Archive, error) {
	b, err := backing.OpenFile(name, backing.Flags{Read: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableArchive, err)
	}
	return openArchive(b, StateOpenedRead, optFns...)
}

// OpenUpdate opens an existing archive on disk for reading and mutation (AddEntry,
// RemoveEntry).
func OpenUpdate(name string, optFns ...OptFn) (*Archive, error) {
	b, err := backing.OpenFile(name, backing.Flags{Read: true, Write: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableArchive, err)
	}
	return openArchive(b, StateOpenedUpdate, optFns...)
}

// Create creates a new, empty archive on disk ready for AddEntry calls.
func Create(name string, perm os.FileMode, optFns ...OptFn) (*Archive, error) {
	b, err := backing.OpenFile(name, backing.Flags{Read: true, Write: true, Create: true}, perm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}
	return newEmptyArchive(b, optFns...)
}

// OpenReadMemory opens an existing archive image held in data for read-only access.
// data is used directly, not copied.
func OpenReadMemory(data []byte, optFns ...OptFn) (*Archive, error) {
	b := backing.OpenMemory(data, backing.Flags{Read: true})
	return openArchive(b, StateOpenedRead, optFns...)
}

// OpenUpdateMemory opens an existing archive image held in data for reading and
// mutation. data is used directly, not copied.
func OpenUpdateMemory(data []byte, optFns ...OptFn) (*Archive, error) {
	b := backing.OpenMemory(data, backing.Flags{Read: true, Write: true})
	return openArchive(b, StateOpenedUpdate, optFns...)
}

// CreateMemory creates a new, empty in-memory archive ready for AddEntry calls. Its
// final bytes are retrievable via Bytes after the archive is closed.
func CreateMemory(optFns ...OptFn) (*Archive, error) {
	return newEmptyArchive(backing.NewMemory(), optFns...)
}

// Bytes returns the archive's current byte image when backed by memory. It panics if
// the archive is not backed by an in-memory buffer.
func (a *Archive) Bytes() []byte {
	m, ok := a.backing.(*backing.Memory)
	if !ok {
		panic("zipkit: Bytes called on a non-memory-backed archive")
	}
	return m.Bytes()
}

// newEmptyArchive writes a bare 22-byte EOCD record (zero entries, zero size) to the
// backing immediately, so a Create'd-then-Close'd archive with no entries added is
// still a well-formed zero-entry ZIP that any conformant reader can open, rather than
// a bare empty file.
func newEmptyArchive(b backing.Backing, optFns ...OptFn) (*Archive, error) {
	a := &Archive{
		backing: b,
		state:   StateOpenedCreate,
		opts:    resolveOptions(optFns...),
		catalog: newCatalog(),
	}

	if err := a.rewriteCentralDirectoryAndEOCD(); err != nil {
		_ = b.Close()
		return nil, err
	}

	return a, nil
}

func openArchive(b backing.Backing, state State, optFns ...OptFn) (*Archive, error) {
	a := &Archive{
		backing: b,
		state:   state,
		opts:    resolveOptions(optFns...),
		catalog: newCatalog(),
	}

	size, err := b.SeekToEnd()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnreadableArchive, err)
	}
	if size == 0 {
		// A zero-byte existing file is a valid empty archive.
		return a, nil
	}

	ra := &backingReaderAt{b: b}
	eocd, eocdOffset, err := wire.FindEOCD(ra, size)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnreadableArchive, err)
	}

	cdOffset := uint64(eocd.CDOffset)
	cdSize := uint64(eocd.CDSize)
	entries := uint64(eocd.EntriesTotal)

	needsZip64 := eocd.CDOffset == wire.Sentinel32 || eocd.CDSize == wire.Sentinel32 ||
		eocd.EntriesTotal == wire.Sentinel16 || eocd.DiskWithCD == wire.Sentinel16
	if needsZip64 {
		locStart := eocdOffset - wire.Zip64EOCDLocatorLen
		locBuf := make([]byte, wire.Zip64EOCDLocatorLen)
		if _, err := ra.ReadAt(locBuf, locStart); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: reading zip64 eocd locator: %w", ErrUnreadableArchive, err)
		}
		loc, err := wire.ParseZip64EOCDLocator(locBuf)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}

		rec64Buf := make([]byte, wire.Zip64EOCDRecordLen)
		if _, err := ra.ReadAt(rec64Buf, int64(loc.Zip64EOCDOffset)); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: reading zip64 eocd record: %w", ErrUnreadableArchive, err)
		}
		rec64, err := wire.ParseZip64EOCDRecord(rec64Buf)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}

		cdOffset = rec64.CDOffset
		cdSize = rec64.CDSize
		entries = rec64.EntriesTotal
	}

	if a.opts.MaxCentralDirectorySize > 0 && int64(cdSize) > a.opts.MaxCentralDirectorySize {
		_ = b.Close()
		return nil, fmt.Errorf("%w: central directory size %s exceeds limit %s",
			ErrCorruptArchive, humanize.IBytes(cdSize), humanize.IBytes(uint64(a.opts.MaxCentralDirectorySize)))
	}

	cdBuf := make([]byte, cdSize)
	if cdSize > 0 {
		if _, err := ra.ReadAt(cdBuf, int64(cdOffset)); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: reading central directory: %w", ErrUnreadableArchive, err)
		}
	}

	rest := cdBuf
	for i := uint64(0); i < entries; i++ {
		h, n, err := wire.ParseCentralDirectoryHeader(rest)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("%w: parsing central directory entry %d: %w", ErrCorruptArchive, i, err)
		}
		e, err := entryFromCDH(ra, h)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		ent := e
		a.catalog.add(&ent)
		rest = rest[n:]
	}

	a.comment = eocd.Comment
	a.cdOffset = cdOffset
	a.cdSize = cdSize

	return a, nil
}

// Iterate returns an iterator over the archive's entries in central-directory
// order.
func (a *Archive) Iterate() func(yield func(int, *Entry) bool) {
	return a.catalog.all()
}

// Lookup returns the entry with the given name, if present.
func (a *Archive) Lookup(name string) (*Entry, bool) {
	return a.catalog.lookup(name)
}

// Len returns the number of entries currently in the catalog.
func (a *Archive) Len() int {
	return a.catalog.len()
}

// Comment returns the archive-level comment.
func (a *Archive) Comment() string {
	return string(a.comment)
}

// Close releases the underlying backing. For a file-backed archive this closes the
// file descriptor; for memory it is a no-op beyond marking the archive closed.
func (a *Archive) Close() error {
	if a.state == StateClosed {
		return nil
	}
	a.state = StateClosed
	return a.backing.Close()
}

func (a *Archive) checkWritable() error {
	switch a.state {
	case StateClosed:
		return ErrClosed
	case StateOpenedRead:
		return ErrReadOnly
	default:
		return nil
	}
}

// backingReaderAt adapts a backing.Backing (Seek + ReadUpTo) into an io.ReaderAt for
// the wire package's scanning functions. Not safe for concurrent use, matching the
// rest of Archive's single-threaded contract.
type backingReaderAt struct {
	b backing.Backing
}

func (r *backingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := r.b.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}

	total := 0
	for total < len(p) {
		n, err := r.b.ReadUpTo(p[total:])
		total += n
		if err != nil {
			if err == io.EOF {
				return total, io.EOF
			}
			return total, err
		}
		if n == 0 {
			return total, io.EOF
		}
	}
	return total, nil
}
