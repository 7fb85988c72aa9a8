package zipkit

import (
	"fmt"
	"io"

	"github.com/nguyengg/zipkit/wire"
)

// rewriteCentralDirectoryAndEOCD serializes the entire catalog plus a fresh
// EOCD record (and ZIP64 EOCD record/locator if needed) starting at a.cdOffset,
// truncating the backing to exactly that new length. Every AddEntry and RemoveEntry
// call ends with this, per the atomic edit protocol's "append CDH" / "rewrite CD+EOCD"
// steps: the whole tail is rewritten rather than patched in place, new central
// directory first and EOCD last. By the time this runs, AddEntry has already written
// the new payload over the old central directory (and RemoveEntry has shifted bytes
// over it), so a crash before the new EOCD lands can leave an EOCD that points at
// bytes that are no longer a valid central directory.
func (a *Archive) rewriteCentralDirectoryAndEOCD() error {
	entries := a.catalog.len()

	var cd []byte
	for _, e := range a.catalog.order {
		h := a.cdhFromEntry(e)
		cd = append(cd, wire.SerializeCentralDirectoryHeader(h)...)
	}

	if _, err := a.backing.Seek(int64(a.cdOffset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}
	if err := a.backing.WriteAll(cd); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	cdSize := uint64(len(cd))
	needsZip64 := a.cdOffset >= a.opts.Zip64SizeThreshold || cdSize >= a.opts.Zip64SizeThreshold ||
		uint64(entries) >= a.opts.Zip64EntryThreshold

	if needsZip64 {
		zip64EOCDOffset := a.cdOffset + cdSize
		rec := wire.Zip64EOCDRecord{
			VersionMadeBy: wire.Version45 | wire.HostUnix<<8,
			VersionNeeded: wire.Version45,
			EntriesOnDisk: uint64(entries),
			EntriesTotal:  uint64(entries),
			CDSize:        cdSize,
			CDOffset:      a.cdOffset,
		}
		if err := a.backing.WriteAll(wire.SerializeZip64EOCDRecord(rec)); err != nil {
			return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
		}

		loc := wire.Zip64EOCDLocator{
			Zip64EOCDOffset: zip64EOCDOffset,
			TotalDisks:      1,
		}
		if err := a.backing.WriteAll(wire.SerializeZip64EOCDLocator(loc)); err != nil {
			return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
		}
	}

	eocd := wire.EOCDRecord{Comment: a.comment}
	if needsZip64 {
		eocd.DiskNumber = wire.Sentinel16
		eocd.DiskWithCD = wire.Sentinel16
		eocd.EntriesOnDisk = wire.Sentinel16
		eocd.EntriesTotal = wire.Sentinel16
		eocd.CDSize = wire.Sentinel32
		eocd.CDOffset = wire.Sentinel32
	} else {
		eocd.EntriesOnDisk = uint16(entries)
		eocd.EntriesTotal = uint16(entries)
		eocd.CDSize = uint32(cdSize)
		eocd.CDOffset = uint32(a.cdOffset)
	}
	if err := a.backing.WriteAll(wire.SerializeEOCD(eocd)); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	end, err := a.backing.Offset()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}
	if err := a.backing.Truncate(end); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}
	if err := a.backing.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	a.cdSize = cdSize
	return nil
}

// cdhFromEntry builds a central directory header from an Entry, emitting a ZIP64
// extra block for whichever of its sizes or local header offset reach
// a.opts.Zip64SizeThreshold (the real 32-bit format limit, unless lowered for tests).
func (a *Archive) cdhFromEntry(e *Entry) wire.CentralDirectoryHeader {
	present := wire.Zip64Present{
		UncompressedSize:  e.UncompressedSize >= a.opts.Zip64SizeThreshold,
		CompressedSize:    e.CompressedSize >= a.opts.Zip64SizeThreshold,
		LocalHeaderOffset: e.localHeaderOffset >= a.opts.Zip64SizeThreshold,
	}

	h := wire.CentralDirectoryHeader{
		VersionMadeBy: wire.Version20 | wire.HostUnix<<8,
		VersionNeeded: wire.Version20,
		Flags:         e.flags,
		Method:        e.Method,
		CRC32:         e.CRC32,
		Name:          e.Name,
		Comment:       e.Comment,
		ExternalAttrs: externalAttrsFor(e.Kind, e.Mode),
	}
	h.ModDate, h.ModTime = wire.MSDosTime(e.ModTime)

	if present.Any() {
		h.VersionNeeded = wire.Version45
		h.VersionMadeBy = wire.Version45 | wire.HostUnix<<8
	}
	if present.UncompressedSize {
		h.UncompressedSize = wire.Sentinel32
	} else {
		h.UncompressedSize = uint32(e.UncompressedSize)
	}
	if present.CompressedSize {
		h.CompressedSize = wire.Sentinel32
	} else {
		h.CompressedSize = uint32(e.CompressedSize)
	}
	if present.LocalHeaderOffset {
		h.LocalHeaderOffset = wire.Sentinel32
	} else {
		h.LocalHeaderOffset = uint32(e.localHeaderOffset)
	}
	if present.Any() {
		h.Extra = wire.SerializeZip64Extra(wire.Zip64Extra{
			UncompressedSize:  e.UncompressedSize,
			CompressedSize:    e.CompressedSize,
			LocalHeaderOffset: e.localHeaderOffset,
		}, present)
	}

	return h
}
