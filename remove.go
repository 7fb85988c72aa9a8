package zipkit

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// RemoveEntry deletes the named entry from the archive: its local file header and
// payload bytes are compacted out of the backing (every later entry shifts down to
// fill the gap), and the central directory is rewritten to match. The archive must
// have been opened with OpenUpdate/Create (or their memory equivalents). ctx is
// checked for cancellation between buffered chunks of the compaction copy.
func (a *Archive) RemoveEntry(ctx context.Context, name string, optFns ...OptFn) error {
	if err := a.checkWritable(); err != nil {
		return err
	}

	target, ok := a.catalog.lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	opts := a.opts
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.setDefaults()

	offsets := make([]uint64, 0, a.catalog.len())
	for _, e := range a.catalog.order {
		offsets = append(offsets, e.localHeaderOffset)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	start := target.localHeaderOffset
	end := a.cdOffset
	for _, off := range offsets {
		if off > start {
			end = off
			break
		}
	}

	gap := end - start
	if err := a.compact(ctx, start, end, a.cdOffset, opts.BufferSize); err != nil {
		return err
	}

	for _, e := range a.catalog.order {
		if e.localHeaderOffset > start {
			e.localHeaderOffset -= gap
		}
	}
	a.catalog.remove(name)
	a.cdOffset -= gap
	a.cdSize = 0

	return a.rewriteCentralDirectoryAndEOCD()
}

// compact shifts the byte range [tailStart, tailEnd) down to begin at dst, in bounded
// chunks so no more than bufferSize bytes are held in memory regardless of archive
// size, checking ctx for cancellation between chunks.
func (a *Archive) compact(ctx context.Context, dst, tailStart, tailEnd uint64, bufferSize int) error {
	if tailStart >= tailEnd {
		return nil
	}

	buf := make([]byte, bufferSize)
	readOffset := tailStart
	writeOffset := dst

	for readOffset < tailEnd {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		default:
		}

		n := len(buf)
		if remaining := tailEnd - readOffset; uint64(n) > remaining {
			n = int(remaining)
		}

		if _, err := (&backingReaderAt{b: a.backing}).ReadAt(buf[:n], int64(readOffset)); err != nil {
			return fmt.Errorf("%w: %w", ErrUnreadableArchive, err)
		}

		if _, err := a.backing.Seek(int64(writeOffset), io.SeekStart); err != nil {
			return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
		}
		if err := a.backing.WriteAll(buf[:n]); err != nil {
			return fmt.Errorf("%w: %w", ErrUnwritableArchive, err)
		}

		readOffset += uint64(n)
		writeOffset += uint64(n)
	}

	return nil
}
