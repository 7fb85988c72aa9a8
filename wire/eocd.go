package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// maxEOCDSearch is the widest an EOCD record plus trailing comment can be: the fixed
// 22 bytes plus a uint16-length comment.
const maxEOCDSearch = EOCDLen + 0xFFFF

// FindEOCD locates and parses the end-of-central-directory record by scanning
// backward from the end of an archive of the given size, per spec.md §4.2's
// backward-scan algorithm: search the last min(size, 22+0xFFFF) bytes for the EOCD
// signature, preferring the last match (entry data earlier in the window may itself
// contain the signature bytes).
func FindEOCD(ra io.ReaderAt, size int64) (EOCDRecord, int64, error) {
	searchLen := min(size, maxEOCDSearch)
	searchStart := size - searchLen

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.Set(make([]byte, searchLen))
	data := buf.Bytes()

	if _, err := ra.ReadAt(data, searchStart); err != nil && err != io.EOF {
		return EOCDRecord{}, 0, fmt.Errorf("wire: read while scanning for EOCD: %w", err)
	}

	sigBytes := []byte{0x50, 0x4b, 0x05, 0x06}
	idx := bytes.LastIndex(data, sigBytes)
	if idx < 0 {
		return EOCDRecord{}, 0, ErrEOCDNotFound
	}

	recordOffset := searchStart + int64(idx)
	rec, _, err := ParseEOCD(data[idx:])
	if err != nil {
		return EOCDRecord{}, 0, err
	}

	return rec, recordOffset, nil
}

// SerializeEOCD returns the 22-byte fixed record followed by r.Comment.
func SerializeEOCD(r EOCDRecord) []byte {
	buf := make([]byte, EOCDLen+len(r.Comment))
	b := writeBuf(buf)

	b.uint32(SigEOCD)
	b.uint16(r.DiskNumber)
	b.uint16(r.DiskWithCD)
	b.uint16(r.EntriesOnDisk)
	b.uint16(r.EntriesTotal)
	b.uint32(r.CDSize)
	b.uint32(r.CDOffset)
	b.uint16(uint16(len(r.Comment)))
	b.bytes(r.Comment)

	return buf
}

// ParseEOCD decodes the fixed record plus comment from the front of buf.
func ParseEOCD(buf []byte) (EOCDRecord, int, error) {
	if len(buf) < EOCDLen {
		return EOCDRecord{}, 0, ErrShortRecord
	}

	r := readBuf(buf)
	if sig := r.uint32(); sig != SigEOCD {
		return EOCDRecord{}, 0, ErrBadSignature
	}

	var rec EOCDRecord
	rec.DiskNumber = r.uint16()
	rec.DiskWithCD = r.uint16()
	rec.EntriesOnDisk = r.uint16()
	rec.EntriesTotal = r.uint16()
	rec.CDSize = r.uint32()
	rec.CDOffset = r.uint32()
	commentLen := r.uint16()

	need := EOCDLen + int(commentLen)
	if len(buf) < need {
		return EOCDRecord{}, 0, ErrShortRecord
	}
	if commentLen > 0 {
		rec.Comment = append([]byte(nil), buf[EOCDLen:need]...)
	}

	return rec, need, nil
}

// SerializeZip64EOCDLocator returns the fixed 20-byte locator record.
func SerializeZip64EOCDLocator(l Zip64EOCDLocator) []byte {
	buf := make([]byte, Zip64EOCDLocatorLen)
	b := writeBuf(buf)

	b.uint32(SigZip64EOCDLocator)
	b.uint32(l.DiskWithZip64EOCD)
	b.uint64(l.Zip64EOCDOffset)
	b.uint32(l.TotalDisks)

	return buf
}

// ParseZip64EOCDLocator decodes the fixed 20-byte locator record from the front of buf.
func ParseZip64EOCDLocator(buf []byte) (Zip64EOCDLocator, error) {
	if len(buf) < Zip64EOCDLocatorLen {
		return Zip64EOCDLocator{}, ErrShortRecord
	}

	r := readBuf(buf)
	if sig := r.uint32(); sig != SigZip64EOCDLocator {
		return Zip64EOCDLocator{}, ErrBadSignature
	}

	var l Zip64EOCDLocator
	l.DiskWithZip64EOCD = r.uint32()
	l.Zip64EOCDOffset = r.uint64()
	l.TotalDisks = r.uint32()

	return l, nil
}

// SerializeZip64EOCDRecord returns the fixed 56-byte portion of the ZIP64 EOCD
// record; this library never writes an extensible data sector.
func SerializeZip64EOCDRecord(r Zip64EOCDRecord) []byte {
	buf := make([]byte, Zip64EOCDRecordLen)
	b := writeBuf(buf)

	b.uint32(SigZip64EOCDRecord)
	b.uint64(uint64(Zip64EOCDRecordLen - 12)) // size of remaining record, excluding signature+this field
	b.uint16(r.VersionMadeBy)
	b.uint16(r.VersionNeeded)
	b.uint32(r.DiskNumber)
	b.uint32(r.DiskWithCD)
	b.uint64(r.EntriesOnDisk)
	b.uint64(r.EntriesTotal)
	b.uint64(r.CDSize)
	b.uint64(r.CDOffset)

	return buf
}

// ParseZip64EOCDRecord decodes the fixed 56-byte portion of the ZIP64 EOCD record;
// any extensible data sector beyond it is ignored.
func ParseZip64EOCDRecord(buf []byte) (Zip64EOCDRecord, error) {
	if len(buf) < Zip64EOCDRecordLen {
		return Zip64EOCDRecord{}, ErrShortRecord
	}

	r := readBuf(buf)
	if sig := r.uint32(); sig != SigZip64EOCDRecord {
		return Zip64EOCDRecord{}, ErrBadSignature
	}
	r.uint64() // size of remaining record, not needed since we only read the fixed part

	var rec Zip64EOCDRecord
	rec.VersionMadeBy = r.uint16()
	rec.VersionNeeded = r.uint16()
	rec.DiskNumber = r.uint32()
	rec.DiskWithCD = r.uint32()
	rec.EntriesOnDisk = r.uint64()
	rec.EntriesTotal = r.uint64()
	rec.CDSize = r.uint64()
	rec.CDOffset = r.uint64()

	return rec, nil
}
