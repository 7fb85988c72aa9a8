package zipkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/nguyengg/zipkit/checksum"
	"github.com/nguyengg/zipkit/deflate"
	"github.com/nguyengg/zipkit/wire"
)

// zip64Reservation is the size of the ZIP64 extra block this library always reserves
// in a newly written local file header, so that the header never needs to grow after
// its real sizes are known: tag(2) + size(2) + uncompressed(8) + compressed(8).
const zip64Reservation = 20

// AddEntry streams content into the archive under name, compressing it with method,
// and appends its metadata to the catalog. The archive must have been opened with
// OpenUpdate/Create (or their memory equivalents); AddEntry fails with ErrReadOnly
// otherwise.
//
// For KindDirectory and KindSymlink, content's meaning follows convention: a
// directory entry has no payload (content is ignored, pass nil), a symlink entry's
// content is the link target path, written with method like any file payload.
func (a *Archive) AddEntry(
	ctx context.Context,
	name string,
	modTime time.Time,
	kind Kind,
	mode uint32,
	method uint16,
	content io.Reader,
	optFns ...OptFn,
) (*Entry, error) {
	if err := a.checkWritable(); err != nil {
		return nil, err
	}
	if method != wire.MethodStored && method != wire.MethodDeflate {
		return nil, fmt.Errorf("%w: method %d", ErrUnsupportedMethod, method)
	}

	name, err := normalizeEntryName(name, kind)
	if err != nil {
		return nil, err
	}
	if _, exists := a.catalog.lookup(name); exists {
		return nil, fmt.Errorf("%w: %s", ErrEntryExists, name)
	}

	opts := a.opts
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.setDefaults()

	localOffset, err := a.backing.Seek(int64(a.cdOffset), io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	if kind == KindDirectory {
		method = wire.MethodStored
		content = nil
	}

	flags := flagsFor(name, opts)

	extra := make([]byte, zip64Reservation)
	lfh := wire.LocalFileHeader{
		VersionNeeded: wire.Version20,
		Flags:         flags,
		Method:        method,
		Name:          name,
		Extra:         extra,
	}
	lfh.ModDate, lfh.ModTime = wire.MSDosTime(modTime)
	lfhBytes := wire.SerializeLocalFileHeader(lfh)
	if err := a.backing.WriteAll(lfhBytes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	crc, compressedSize, uncompressedSize, err := a.writePayload(ctx, method, content, opts)
	if err != nil {
		return nil, err
	}

	end, err := a.backing.Offset()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	if err := a.rewriteLocalFileHeader(uint64(localOffset), lfh, crc, compressedSize, uncompressedSize, opts); err != nil {
		return nil, err
	}

	e := &Entry{
		Name:              name,
		Kind:              kind,
		Mode:              mode,
		ModTime:           modTime,
		Method:            method,
		CRC32:             crc,
		CompressedSize:    compressedSize,
		UncompressedSize:  uncompressedSize,
		NonUTF8:           flags&wire.FlagUTF8 == 0,
		localHeaderOffset: uint64(localOffset),
		flags:             flags,
	}
	a.catalog.add(e)

	a.cdOffset = uint64(end)
	a.cdSize = 0

	if err := a.rewriteCentralDirectoryAndEOCD(); err != nil {
		return nil, err
	}

	return e, nil
}

// writePayload streams content through method's codec, writing compressed bytes
// directly to the archive's current offset, and returns the accumulated checksum and
// sizes.
func (a *Archive) writePayload(ctx context.Context, method uint16, content io.Reader, opts Options) (crc uint32, compressedSize, uncompressedSize uint64, err error) {
	if content == nil {
		return 0, 0, 0, nil
	}

	h := checksum.New()
	tee := io.TeeReader(content, teeWriterFunc(func(p []byte) (int, error) { return h.Write(p) }))

	switch method {
	case wire.MethodStored:
		buf := make([]byte, opts.BufferSize)
		for {
			n, rerr := tee.Read(buf)
			if n > 0 {
				if werr := a.backing.WriteAll(buf[:n]); werr != nil {
					return 0, 0, 0, fmt.Errorf("%w: %w", ErrUnwritableArchive, werr)
				}
				uncompressedSize += uint64(n)
				compressedSize += uint64(n)
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return 0, 0, 0, fmt.Errorf("%w: %w", ErrUnreadableArchive, rerr)
			}
			select {
			case <-ctx.Done():
				return 0, 0, 0, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			default:
			}
		}

	case wire.MethodDeflate:
		provider := func(_ context.Context, _ int64, n int) ([]byte, error) {
			buf := make([]byte, n)
			rn, rerr := tee.Read(buf)
			uncompressedSize += uint64(rn)
			if rerr != nil && rerr != io.EOF {
				return nil, fmt.Errorf("%w: %w", ErrUnreadableArchive, rerr)
			}
			if rn == 0 {
				return nil, nil
			}
			return buf[:rn], nil
		}
		consumer := func(_ context.Context, chunk []byte) error {
			if err := a.backing.WriteAll(chunk); err != nil {
				return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
			}
			compressedSize += uint64(len(chunk))
			return nil
		}
		if err := deflate.Encode(ctx, provider, consumer, deflate.WithBufferSize(opts.BufferSize), deflate.WithLevel(opts.Level)); err != nil {
			if errors.Is(err, deflate.ErrCancelled) {
				return 0, 0, 0, fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			return 0, 0, 0, err
		}
	}

	return h.Sum32(), compressedSize, uncompressedSize, nil
}

// rewriteLocalFileHeader seeks back to offset and rewrites the fixed portion plus
// the reserved ZIP64 extra block with the now-known crc and sizes, per the atomic
// edit protocol's "rewrite LFH" step.
func (a *Archive) rewriteLocalFileHeader(offset uint64, lfh wire.LocalFileHeader, crc uint32, compressedSize, uncompressedSize uint64, opts Options) error {
	overflow := compressedSize >= opts.Zip64SizeThreshold || uncompressedSize >= opts.Zip64SizeThreshold

	lfh.CRC32 = crc
	if overflow {
		lfh.CompressedSize = wire.Sentinel32
		lfh.UncompressedSize = wire.Sentinel32
		lfh.VersionNeeded = wire.Version45
	} else {
		lfh.CompressedSize = uint32(compressedSize)
		lfh.UncompressedSize = uint32(uncompressedSize)
	}
	lfh.Extra = wire.SerializeZip64Extra(wire.Zip64Extra{
		UncompressedSize: uncompressedSize,
		CompressedSize:   compressedSize,
	}, wire.Zip64Present{UncompressedSize: true, CompressedSize: true})

	buf := wire.SerializeLocalFileHeader(lfh)
	if len(buf) != wire.LocalFileHeaderLen+len(lfh.Name)+zip64Reservation {
		return fmt.Errorf("%w: local file header grew unexpectedly on rewrite", ErrUnwritableArchive)
	}

	if _, err := a.backing.Seek(int64(offset), io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}
	if err := a.backing.WriteAll(buf); err != nil {
		return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
	}

	return nil
}

// normalizeEntryName validates and canonicalizes an entry path: relative,
// forward-slash separated, no "..", non-empty, with a trailing slash enforced for
// directories.
func normalizeEntryName(name string, kind Kind) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidEntryPath)
	}

	clean := strings.ReplaceAll(name, "\\", "/")
	if path.IsAbs(clean) || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: %s: absolute path", ErrInvalidEntryPath, name)
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s: contains \"..\"", ErrInvalidEntryPath, name)
		}
	}

	clean = strings.TrimSuffix(clean, "/")
	if clean == "" || clean == "." {
		return "", fmt.Errorf("%w: %s: empty after normalization", ErrInvalidEntryPath, name)
	}
	if kind == KindDirectory {
		clean += "/"
	}
	if len(clean) > 0xFFFF {
		return "", fmt.Errorf("%w: %s: name longer than 65535 bytes", ErrInvalidEntryPath, name)
	}

	return clean, nil
}

// utf8FlagFor returns wire.FlagUTF8 only when name contains a byte outside plain
// ASCII, i.e. isn't already representable in CP-437/ASCII as-is.
func utf8FlagFor(name string) uint16 {
	for _, r := range name {
		if r > 0x7f {
			return wire.FlagUTF8
		}
	}
	return 0
}

// flagsFor resolves the general-purpose bit flags to write for name, honoring an
// explicit caller override (opts.Flags) over the automatic UTF-8 detection.
func flagsFor(name string, opts Options) uint16 {
	if opts.Flags != nil {
		return *opts.Flags
	}
	return utf8FlagFor(name)
}

// teeWriterFunc adapts a func(p []byte) (int, error) into an io.Writer.
type teeWriterFunc func(p []byte) (int, error)

func (f teeWriterFunc) Write(p []byte) (int, error) { return f(p) }
