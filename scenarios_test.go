package zipkit

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyengg/zipkit/wire"
)

// TestScenario1_StoredHello mirrors spec scenario 1: Create in memory; add "a.txt"
// with contents "hello" (5 bytes), method Stored; extract returns 5 bytes equal to
// "hello", CRC = 0x3610A686.
func TestScenario1_StoredHello(t *testing.T) {
	a, err := CreateMemory()
	require.NoError(t, err)

	_, err = a.AddEntry(context.Background(), "a.txt", time.Now(), KindFile, 0644, wire.MethodStored, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	e, ok := a.Lookup("a.txt")
	require.True(t, ok)
	assert.Equal(t, uint32(0x3610A686), e.CRC32)

	var out bytes.Buffer
	require.NoError(t, a.ExtractEntry(context.Background(), e, func(_ context.Context, c []byte) error {
		_, werr := out.Write(c)
		return werr
	}))
	assert.Equal(t, "hello", out.String())
	assert.Len(t, out.Bytes(), 5)
}

// TestScenario2_DeflateZeros mirrors spec scenario 2: Create in memory; add "a.bin"
// with 4KiB of zero bytes, method Deflate; compressed size < 100 bytes; extract
// returns 4096 zero bytes; CRC = 0x1E8B0731.
func TestScenario2_DeflateZeros(t *testing.T) {
	a, err := CreateMemory()
	require.NoError(t, err)

	zeros := make([]byte, 4096)
	_, err = a.AddEntry(context.Background(), "a.bin", time.Now(), KindFile, 0644, wire.MethodDeflate, bytes.NewReader(zeros))
	require.NoError(t, err)

	e, ok := a.Lookup("a.bin")
	require.True(t, ok)
	assert.Equal(t, uint32(0x1E8B0731), e.CRC32)
	assert.Less(t, e.CompressedSize, uint64(100))

	var out bytes.Buffer
	require.NoError(t, a.ExtractEntry(context.Background(), e, func(_ context.Context, c []byte) error {
		_, werr := out.Write(c)
		return werr
	}))
	assert.Equal(t, zeros, out.Bytes())
}

// TestScenario3_RemoveShiftsOffsets mirrors spec scenario 3: a {dir/, dir/a, dir/b}
// archive with "dir/a" removed yields {dir/, dir/b}, and dir/b's localHeaderOffset
// decreases by the old local-record size of dir/a.
func TestScenario3_RemoveShiftsOffsets(t *testing.T) {
	a, err := CreateMemory()
	require.NoError(t, err)
	now := time.Now()

	_, err = a.AddEntry(context.Background(), "dir/", now, KindDirectory, 0755, wire.MethodStored, nil)
	require.NoError(t, err)
	_, err = a.AddEntry(context.Background(), "dir/a", now, KindFile, 0644, wire.MethodStored, bytes.NewReader([]byte("aaaa")))
	require.NoError(t, err)
	_, err = a.AddEntry(context.Background(), "dir/b", now, KindFile, 0644, wire.MethodStored, bytes.NewReader([]byte("bbbb")))
	require.NoError(t, err)

	before, ok := a.Lookup("dir/b")
	require.True(t, ok)
	beforeOffset := before.localHeaderOffset

	da, ok := a.Lookup("dir/a")
	require.True(t, ok)
	removedOffset := da.localHeaderOffset

	require.NoError(t, a.RemoveEntry(context.Background(), "dir/a"))

	var names []string
	for _, e := range a.Iterate() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"dir/", "dir/b"}, names)

	after, ok := a.Lookup("dir/b")
	require.True(t, ok)
	assert.Less(t, after.localHeaderOffset, beforeOffset)
	assert.Equal(t, removedOffset, after.localHeaderOffset)
}

// TestScenario4_MockedZip64Thresholds mirrors spec scenario 4: with the ZIP64
// entry-count/size thresholds mocked down to 64/4096, adding 65 tiny entries forces
// the archive to write a ZIP64 EOCD record and locator (entries-on-disk sentinel'd to
// 0xFFFF in the regular EOCD) without needing a real 64k-entry or 4GiB archive, and
// every entry is still readable back out.
func TestScenario4_MockedZip64Thresholds(t *testing.T) {
	a, err := CreateMemory(WithZip64EntryThreshold(64), WithZip64SizeThreshold(4096))
	require.NoError(t, err)

	const n = 65
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f%02d.txt", i)
		_, err := a.AddEntry(context.Background(), name, time.Now(), KindFile, 0644, wire.MethodStored, bytes.NewReader([]byte("x")))
		require.NoError(t, err)
	}

	image := append([]byte{}, a.Bytes()...)
	require.NoError(t, a.Close())

	assert.Contains(t, string(image), string([]byte{0x50, 0x4b, 0x06, 0x06}), "zip64 EOCD record signature")
	assert.Contains(t, string(image), string([]byte{0x50, 0x4b, 0x06, 0x07}), "zip64 EOCD locator signature")

	reopened, err := OpenReadMemory(image)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, n, reopened.Len())
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f%02d.txt", i)
		e, ok := reopened.Lookup(name)
		require.True(t, ok)

		var out bytes.Buffer
		require.NoError(t, reopened.ExtractEntry(context.Background(), e, func(_ context.Context, c []byte) error {
			_, werr := out.Write(c)
			return werr
		}))
		assert.Equal(t, "x", out.String())
	}
}

// TestScenario5_CorruptedCRCFailsExtraction mirrors spec scenario 5: flipping one
// bit of an entry's recorded CRC-32 (in both its local file header and its central
// directory header, so the two still agree and the archive opens) causes extraction
// to fail with ErrInvalidCRC32.
func TestScenario5_CorruptedCRCFailsExtraction(t *testing.T) {
	a, err := CreateMemory()
	require.NoError(t, err)

	_, err = a.AddEntry(context.Background(), "a.txt", time.Now(), KindFile, 0644, wire.MethodStored, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	image := append([]byte{}, a.Bytes()...)
	require.NoError(t, a.Close())

	// Flip the same bit of the CRC-32 recorded in the local file header and in the
	// central directory header; Open rejects an archive whose two headers disagree.
	// The only entry's local file header starts at offset 0; the central directory
	// sits right after the local file header + payload.
	image[14] ^= 0x01 // CRC32 field starts at offset 14 within the LFH.
	idx := bytes.Index(image, []byte{0x50, 0x4b, 0x01, 0x02})
	require.GreaterOrEqual(t, idx, 0)
	image[idx+16] ^= 0x01 // CRC32 field starts at offset 16 within the CDH.

	reopened, err := OpenReadMemory(image)
	require.NoError(t, err)
	defer reopened.Close()

	e, ok := reopened.Lookup("a.txt")
	require.True(t, ok)

	err = reopened.ExtractEntry(context.Background(), e, func(context.Context, []byte) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidCRC32)
}

// TestScenario6_RandomBytesIsUnreadable mirrors spec scenario 6: opening a 1024-byte
// buffer of non-ZIP data (the byte 0x42 repeated) in Read mode fails with
// ErrUnreadableArchive.
func TestScenario6_RandomBytesIsUnreadable(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 1024)

	_, err := OpenReadMemory(data)
	assert.ErrorIs(t, err, ErrUnreadableArchive)
}
