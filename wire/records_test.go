package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalFileHeader_RoundTrip(t *testing.T) {
	h := LocalFileHeader{
		VersionNeeded:    Version20,
		Flags:            FlagUTF8,
		Method:           MethodDeflate,
		CRC32:            0x3610A686,
		CompressedSize:   123,
		UncompressedSize: 456,
		Name:             "hello/world.txt",
		Extra:            []byte{0x01, 0x02},
	}

	buf := SerializeLocalFileHeader(h)

	got, n, err := ParseLocalFileHeader(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, h, got)
}

func TestCentralDirectoryHeader_RoundTrip(t *testing.T) {
	h := CentralDirectoryHeader{
		VersionMadeBy:     Version20 | HostUnix<<8,
		VersionNeeded:     Version20,
		Flags:             FlagUTF8,
		Method:            MethodStored,
		CRC32:             0xdeadbeef,
		CompressedSize:    10,
		UncompressedSize:  10,
		ExternalAttrs:     0100644 << 16,
		LocalHeaderOffset: 1000,
		Name:              "a/b/c",
		Extra:             []byte{},
		Comment:           "a comment",
	}

	buf := SerializeCentralDirectoryHeader(h)

	got, n, err := ParseCentralDirectoryHeader(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, h.Comment, got.Comment)
	assert.Equal(t, h.CRC32, got.CRC32)
	assert.Equal(t, h.LocalHeaderOffset, got.LocalHeaderOffset)
}

func TestDataDescriptor_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		d     DataDescriptor
	}{
		{"32-bit", DataDescriptor{CRC32: 7, CompressedSize: 100, UncompressedSize: 200}},
		{"zip64", DataDescriptor{CRC32: 7, CompressedSize: 1 << 40, UncompressedSize: 1 << 41, Zip64: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := SerializeDataDescriptor(tt.d)
			got, n, err := ParseDataDescriptor(buf, tt.d.Zip64)
			assert.NoError(t, err)
			assert.Equal(t, len(buf), n)
			assert.Equal(t, tt.d, got)
		})
	}
}

func TestZip64Extra_RoundTrip(t *testing.T) {
	present := Zip64Present{UncompressedSize: true, CompressedSize: true, LocalHeaderOffset: true}
	z := Zip64Extra{UncompressedSize: 1 << 33, CompressedSize: 1 << 32, LocalHeaderOffset: 1 << 34}

	buf := SerializeZip64Extra(z, present)

	got, ok := FindZip64Extra(buf, present)
	assert.True(t, ok)
	assert.Equal(t, z, got)
}

func TestZip64Extra_SkipsOtherTags(t *testing.T) {
	other := []byte{0x55, 0x54, 0x05, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}
	present := Zip64Present{UncompressedSize: true}
	z := Zip64Extra{UncompressedSize: 42}
	zip64 := SerializeZip64Extra(z, present)

	extra := append(append([]byte{}, other...), zip64...)

	got, ok := FindZip64Extra(extra, present)
	assert.True(t, ok)
	assert.Equal(t, z, got)
}

func TestMSDosTime_RoundTrip(t *testing.T) {
	in := time.Date(2024, time.March, 15, 13, 45, 30, 0, time.UTC)
	date, mtime := MSDosTime(in)
	out := MSDosTimeToTime(date, mtime)

	assert.Equal(t, in.Year(), out.Year())
	assert.Equal(t, in.Month(), out.Month())
	assert.Equal(t, in.Day(), out.Day())
	assert.Equal(t, in.Hour(), out.Hour())
	assert.Equal(t, in.Minute(), out.Minute())
	// 2-second resolution.
	assert.InDelta(t, in.Second(), out.Second(), 1)
}

func TestMSDosTime_ClampsOutOfRange(t *testing.T) {
	date, _ := MSDosTime(time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC))
	out := MSDosTimeToTime(date, 0)
	assert.Equal(t, 1980, out.Year())
}

func TestEOCD_RoundTrip(t *testing.T) {
	r := EOCDRecord{
		DiskNumber:    0,
		DiskWithCD:    0,
		EntriesOnDisk: 3,
		EntriesTotal:  3,
		CDSize:        500,
		CDOffset:      1000,
		Comment:       []byte("archive comment"),
	}

	buf := SerializeEOCD(r)
	got, n, err := ParseEOCD(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r, got)
}

type sliceReaderAt []byte

func (s sliceReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, s[off:])
	if n < len(p) {
		return n, bytes.ErrTooLarge
	}
	return n, nil
}

func TestFindEOCD(t *testing.T) {
	eocd := EOCDRecord{EntriesOnDisk: 1, EntriesTotal: 1, CDSize: 10, CDOffset: 5}
	archive := append([]byte{0x50, 0x4b, 0x03, 0x04, 0, 0, 0, 0, 0}, SerializeEOCD(eocd)...)

	got, offset, err := FindEOCD(sliceReaderAt(archive), int64(len(archive)))
	assert.NoError(t, err)
	assert.Equal(t, int64(9), offset)
	assert.Equal(t, eocd.CDOffset, got.CDOffset)
}

func TestFindEOCD_NotFound(t *testing.T) {
	archive := []byte{1, 2, 3, 4}
	_, _, err := FindEOCD(sliceReaderAt(archive), int64(len(archive)))
	assert.ErrorIs(t, err, ErrEOCDNotFound)
}

func TestZip64EOCDRecord_RoundTrip(t *testing.T) {
	r := Zip64EOCDRecord{
		VersionMadeBy: Version45,
		VersionNeeded: Version45,
		EntriesOnDisk: 70000,
		EntriesTotal:  70000,
		CDSize:        1 << 33,
		CDOffset:      1 << 34,
	}

	buf := SerializeZip64EOCDRecord(r)
	got, err := ParseZip64EOCDRecord(buf)
	assert.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestZip64EOCDLocator_RoundTrip(t *testing.T) {
	l := Zip64EOCDLocator{DiskWithZip64EOCD: 0, Zip64EOCDOffset: 1 << 35, TotalDisks: 1}

	buf := SerializeZip64EOCDLocator(l)
	got, err := ParseZip64EOCDLocator(buf)
	assert.NoError(t, err)
	assert.Equal(t, l, got)
}
