package zipkit

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/nguyengg/zipkit/checksum"
	"github.com/nguyengg/zipkit/deflate"
	"github.com/nguyengg/zipkit/wire"
)

// ExtractEntry streams e's decompressed payload to consumer, verifying the
// recomputed CRC-32 against the catalog value once the payload is exhausted. e must
// have come from this Archive's Lookup/Iterate.
func (a *Archive) ExtractEntry(ctx context.Context, e *Entry, consumer func(ctx context.Context, chunk []byte) error, optFns ...OptFn) error {
	if a.state == StateClosed {
		return ErrClosed
	}
	if e.Kind == KindDirectory {
		return nil
	}

	opts := a.opts
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.setDefaults()

	payloadOffset, err := a.payloadOffset(e)
	if err != nil {
		return err
	}

	ra := &backingReaderAt{b: a.backing}
	h := checksum.New()

	checkedConsumer := func(ctx context.Context, chunk []byte) error {
		_, _ = h.Write(chunk)
		return consumer(ctx, chunk)
	}

	provider := func(_ context.Context, offset int64, n int) ([]byte, error) {
		remaining := int64(e.CompressedSize) - offset
		if remaining <= 0 {
			return nil, nil
		}
		if int64(n) > remaining {
			n = int(remaining)
		}
		buf := make([]byte, n)
		rn, err := ra.ReadAt(buf, payloadOffset+offset)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %w", ErrUnreadableArchive, err)
		}
		return buf[:rn], nil
	}

	switch e.Method {
	case wire.MethodStored:
		var offset int64
		for {
			chunk, err := provider(ctx, offset, opts.BufferSize)
			if err != nil {
				return err
			}
			if len(chunk) == 0 {
				break
			}
			if err := checkedConsumer(ctx, chunk); err != nil {
				return err
			}
			offset += int64(len(chunk))

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			default:
			}
		}

	case wire.MethodDeflate:
		if err := deflate.Decode(ctx, provider, checkedConsumer, deflate.WithBufferSize(opts.BufferSize)); err != nil {
			if errors.Is(err, deflate.ErrCancelled) {
				return fmt.Errorf("%w: %w", ErrCancelled, err)
			}
			return err
		}

	default:
		return fmt.Errorf("%w: method %d", ErrUnsupportedMethod, e.Method)
	}

	if h.Sum32() != e.CRC32 {
		return fmt.Errorf("%w: %s: want %08x, got %08x", ErrInvalidCRC32, e.Name, e.CRC32, h.Sum32())
	}

	return nil
}

// payloadOffset reads e's local file header to locate where its payload begins,
// since the header's own name/extra lengths (not the catalog's) determine the exact
// byte offset.
func (a *Archive) payloadOffset(e *Entry) (int64, error) {
	ra := &backingReaderAt{b: a.backing}

	fixed := make([]byte, wire.LocalFileHeaderLen)
	if _, err := ra.ReadAt(fixed, int64(e.localHeaderOffset)); err != nil {
		return 0, fmt.Errorf("%w: reading local file header: %w", ErrUnreadableArchive, err)
	}

	var nameLen, extraLen int
	{
		r := fixed[26:30]
		nameLen = int(uint16(r[0]) | uint16(r[1])<<8)
		extraLen = int(uint16(r[2]) | uint16(r[3])<<8)
	}

	return int64(e.localHeaderOffset) + wire.LocalFileHeaderLen + int64(nameLen) + int64(extraLen), nil
}

// CheckIntegrity extracts and discards every non-directory entry's payload,
// verifying each CRC-32. It returns a combined error (via go-multierror) naming every
// entry that failed, or nil if every entry in the archive is intact.
func (a *Archive) CheckIntegrity(ctx context.Context, optFns ...OptFn) error {
	var result *multierror.Error

	for _, e := range a.catalog.order {
		discard := func(context.Context, []byte) error { return nil }
		if err := a.ExtractEntry(ctx, e, discard, optFns...); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", e.Name, err))
		}
	}

	return result.ErrorOrNil()
}
