package wire

// SerializeLocalFileHeader returns the 30-byte fixed record followed by h.Name and
// h.Extra. Callers that need ZIP64 must already have sentinel'd the size fields and
// appended a Zip64Extra block (see SerializeZip64Extra) to h.Extra before calling.
func SerializeLocalFileHeader(h LocalFileHeader) []byte {
	name := []byte(h.Name)
	buf := make([]byte, LocalFileHeaderLen+len(name)+len(h.Extra))
	b := writeBuf(buf)

	b.uint32(SigLocalFileHeader)
	b.uint16(h.VersionNeeded)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModTime)
	b.uint16(h.ModDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(uint16(len(name)))
	b.uint16(uint16(len(h.Extra)))
	b.bytes(name)
	b.bytes(h.Extra)

	return buf
}

// ParseLocalFileHeader decodes the fixed 30-byte record plus name/extra starting at
// the front of buf, which must hold at least the fixed portion plus the trailing
// name/extra lengths encoded within it. Returns the number of bytes consumed.
func ParseLocalFileHeader(buf []byte) (LocalFileHeader, int, error) {
	if len(buf) < LocalFileHeaderLen {
		return LocalFileHeader{}, 0, ErrShortRecord
	}

	r := readBuf(buf)
	sig := r.uint32()
	if sig != SigLocalFileHeader {
		return LocalFileHeader{}, 0, ErrBadSignature
	}

	var h LocalFileHeader
	h.VersionNeeded = r.uint16()
	h.Flags = r.uint16()
	h.Method = r.uint16()
	h.ModTime = r.uint16()
	h.ModDate = r.uint16()
	h.CRC32 = r.uint32()
	h.CompressedSize = r.uint32()
	h.UncompressedSize = r.uint32()
	nameLen := r.uint16()
	extraLen := r.uint16()

	need := LocalFileHeaderLen + int(nameLen) + int(extraLen)
	if len(buf) < need {
		return LocalFileHeader{}, 0, ErrShortRecord
	}

	h.Name = string(buf[LocalFileHeaderLen : LocalFileHeaderLen+int(nameLen)])
	if extraLen > 0 {
		h.Extra = append([]byte(nil), buf[LocalFileHeaderLen+int(nameLen):need]...)
	}

	return h, need, nil
}

// SerializeCentralDirectoryHeader returns the 46-byte fixed record followed by
// h.Name, h.Extra, h.Comment.
func SerializeCentralDirectoryHeader(h CentralDirectoryHeader) []byte {
	name := []byte(h.Name)
	comment := []byte(h.Comment)
	buf := make([]byte, CentralDirHeaderLen+len(name)+len(h.Extra)+len(comment))
	b := writeBuf(buf)

	b.uint32(SigCentralDirHeader)
	b.uint16(h.VersionMadeBy)
	b.uint16(h.VersionNeeded)
	b.uint16(h.Flags)
	b.uint16(h.Method)
	b.uint16(h.ModTime)
	b.uint16(h.ModDate)
	b.uint32(h.CRC32)
	b.uint32(h.CompressedSize)
	b.uint32(h.UncompressedSize)
	b.uint16(uint16(len(name)))
	b.uint16(uint16(len(h.Extra)))
	b.uint16(uint16(len(comment)))
	b.uint16(h.DiskNumberStart)
	b.uint16(h.InternalAttrs)
	b.uint32(h.ExternalAttrs)
	b.uint32(h.LocalHeaderOffset)
	b.bytes(name)
	b.bytes(h.Extra)
	b.bytes(comment)

	return buf
}

// ParseCentralDirectoryHeader decodes one 46-byte fixed record plus its trailers
// from the front of buf. Returns the number of bytes consumed.
func ParseCentralDirectoryHeader(buf []byte) (CentralDirectoryHeader, int, error) {
	if len(buf) < CentralDirHeaderLen {
		return CentralDirectoryHeader{}, 0, ErrShortRecord
	}

	r := readBuf(buf)
	sig := r.uint32()
	if sig != SigCentralDirHeader {
		return CentralDirectoryHeader{}, 0, ErrBadSignature
	}

	var h CentralDirectoryHeader
	h.VersionMadeBy = r.uint16()
	h.VersionNeeded = r.uint16()
	h.Flags = r.uint16()
	h.Method = r.uint16()
	h.ModTime = r.uint16()
	h.ModDate = r.uint16()
	h.CRC32 = r.uint32()
	h.CompressedSize = r.uint32()
	h.UncompressedSize = r.uint32()
	nameLen := r.uint16()
	extraLen := r.uint16()
	commentLen := r.uint16()
	h.DiskNumberStart = r.uint16()
	h.InternalAttrs = r.uint16()
	h.ExternalAttrs = r.uint32()
	h.LocalHeaderOffset = r.uint32()

	need := CentralDirHeaderLen + int(nameLen) + int(extraLen) + int(commentLen)
	if len(buf) < need {
		return CentralDirectoryHeader{}, 0, ErrShortRecord
	}

	off := CentralDirHeaderLen
	h.Name = string(buf[off : off+int(nameLen)])
	off += int(nameLen)
	if extraLen > 0 {
		h.Extra = append([]byte(nil), buf[off:off+int(extraLen)]...)
	}
	off += int(extraLen)
	if commentLen > 0 {
		h.Comment = string(buf[off : off+int(commentLen)])
	}

	return h, need, nil
}

// SerializeDataDescriptor returns the optional streaming trailer, always with its
// signature (some readers require it; writers that omit it are also conformant but
// this library always includes it for unambiguous re-scanning).
func SerializeDataDescriptor(d DataDescriptor) []byte {
	if d.Zip64 {
		buf := make([]byte, DataDescriptor64Len)
		b := writeBuf(buf)
		b.uint32(SigDataDescriptor)
		b.uint32(d.CRC32)
		b.uint64(d.CompressedSize)
		b.uint64(d.UncompressedSize)
		return buf
	}

	buf := make([]byte, DataDescriptorLen)
	b := writeBuf(buf)
	b.uint32(SigDataDescriptor)
	b.uint32(d.CRC32)
	b.uint32(uint32(d.CompressedSize))
	b.uint32(uint32(d.UncompressedSize))
	return buf
}

// ParseDataDescriptor decodes a data descriptor from the front of buf. zip64 selects
// which of the two layouts to expect; the signature is tolerated as optional per the
// format's ambiguity (spec.md §6: "readers MUST accept both").
func ParseDataDescriptor(buf []byte, zip64 bool) (DataDescriptor, int, error) {
	want := DataDescriptorLen
	if zip64 {
		want = DataDescriptor64Len
	}
	if len(buf) < want {
		return DataDescriptor{}, 0, ErrShortRecord
	}

	r := readBuf(buf)
	consumed := 0
	if sig := binary32(buf); sig == SigDataDescriptor {
		r.uint32()
		consumed = 4
	}

	d := DataDescriptor{Zip64: zip64}
	d.CRC32 = r.uint32()
	if zip64 {
		d.CompressedSize = r.uint64()
		d.UncompressedSize = r.uint64()
		consumed += 4 + 8 + 8
	} else {
		d.CompressedSize = uint64(r.uint32())
		d.UncompressedSize = uint64(r.uint32())
		consumed += 4 + 4 + 4
	}

	return d, consumed, nil
}

func binary32(buf []byte) uint32 {
	r := readBuf(buf)
	return r.uint32()
}

// SerializeZip64Extra packs z into a tag-0x0001 extra block. present controls
// which fields are emitted, in the mandated order (uncompressed size, compressed
// size, local header offset, disk start); FindZip64Extra must be given the same set
// to decode the block.
func SerializeZip64Extra(z Zip64Extra, present Zip64Present) []byte {
	size := 0
	if present.UncompressedSize {
		size += 8
	}
	if present.CompressedSize {
		size += 8
	}
	if present.LocalHeaderOffset {
		size += 8
	}
	if present.DiskStart {
		size += 4
	}

	buf := make([]byte, 4+size)
	b := writeBuf(buf)
	b.uint16(Zip64ExtraTag)
	b.uint16(uint16(size))
	if present.UncompressedSize {
		b.uint64(z.UncompressedSize)
	}
	if present.CompressedSize {
		b.uint64(z.CompressedSize)
	}
	if present.LocalHeaderOffset {
		b.uint64(z.LocalHeaderOffset)
	}
	if present.DiskStart {
		b.uint32(z.DiskStart)
	}

	return buf
}

// Zip64Present records which fields a ZIP64 extra block carries, mirroring which
// fixed-size fields in the owning header were sentinel'd.
type Zip64Present struct {
	UncompressedSize  bool
	CompressedSize    bool
	LocalHeaderOffset bool
	DiskStart         bool
}

// Any reports whether at least one field is present, i.e. whether a ZIP64 extra
// block is needed at all.
func (p Zip64Present) Any() bool {
	return p.UncompressedSize || p.CompressedSize || p.LocalHeaderOffset || p.DiskStart
}

// FindZip64Extra scans extra (the raw extra-field area of a header) for a tag-0x0001
// block and decodes exactly the fields present asks for, in the mandated order. ok is
// false if no such block was found.
func FindZip64Extra(extra []byte, present Zip64Present) (z Zip64Extra, ok bool) {
	for len(extra) >= 4 {
		r := readBuf(extra)
		tag := r.uint16()
		size := r.uint16()
		if len(extra) < 4+int(size) {
			return Zip64Extra{}, false
		}
		body := extra[4 : 4+int(size)]
		extra = extra[4+int(size):]

		if tag != Zip64ExtraTag {
			continue
		}

		br := readBuf(body)
		if present.UncompressedSize && len(br) >= 8 {
			z.UncompressedSize = br.uint64()
		}
		if present.CompressedSize && len(br) >= 8 {
			z.CompressedSize = br.uint64()
		}
		if present.LocalHeaderOffset && len(br) >= 8 {
			z.LocalHeaderOffset = br.uint64()
		}
		if present.DiskStart && len(br) >= 4 {
			z.DiskStart = br.uint32()
		}
		return z, true
	}

	return Zip64Extra{}, false
}
