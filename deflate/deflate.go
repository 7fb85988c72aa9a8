// Package deflate provides the streaming compress/decompress primitives entry
// payloads are pushed through: raw DEFLATE (no zlib or gzip framing), wrapping
// github.com/klauspost/compress/flate. Both directions are expressed as
// provider/consumer callbacks bounded by a caller-supplied buffer size, so the
// archive core never holds more than one buffer's worth of an entry's payload in
// memory regardless of entry size.
package deflate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DefaultBufferSize is used when Options.BufferSize is left at zero, matching the
// corpus's CopyBufferWithContext default.
const DefaultBufferSize = 32 * 1024

// ErrCancelled wraps ctx.Err() at every cancellation check Encode/Decode perform
// between buffered chunks, so callers can test with errors.Is(err, ErrCancelled)
// instead of matching context.Canceled/DeadlineExceeded directly.
var ErrCancelled = errors.New("deflate: operation cancelled")

// Options configures a single Encode or Decode call.
type Options struct {
	// BufferSize is the size of the intermediate buffer used to shuttle bytes
	// between the provider/consumer callbacks and the flate codec. Defaults to
	// DefaultBufferSize.
	BufferSize int
	// Level is the compression level passed to flate.NewWriter, defaulting to
	// flate.DefaultCompression when left at the zero value. Only consulted by
	// Encode. Since flate.NoCompression is also 0, WithLevel(flate.NoCompression)
	// is indistinguishable from "unset" and also yields flate.DefaultCompression;
	// pass wire.MethodStored at the archive layer instead if no compression is
	// what's wanted.
	Level int
}

func (o *Options) setDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Level == 0 {
		o.Level = flate.DefaultCompression
	}
}

// OptFn mutates Options; the functional-options pattern used throughout this module.
type OptFn func(*Options)

// WithBufferSize overrides the intermediate buffer size.
func WithBufferSize(n int) OptFn {
	return func(o *Options) { o.BufferSize = n }
}

// WithLevel overrides the flate compression level (flate.BestSpeed through
// flate.BestCompression, or flate.DefaultCompression/flate.HuffmanOnly). A level of
// 0 (flate.NoCompression) is treated as unset and becomes flate.DefaultCompression.
func WithLevel(level int) OptFn {
	return func(o *Options) { o.Level = level }
}

// providerReader adapts a pull-style provider(offset, n) callback into an io.Reader,
// passing how many bytes it has delivered so far as the offset argument.
type providerReader struct {
	ctx      context.Context
	provider func(ctx context.Context, offset int64, n int) ([]byte, error)
	offset   int64
}

func (r *providerReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	chunk, err := r.provider(r.ctx, r.offset, len(p))
	if err != nil {
		return 0, err
	}
	if len(chunk) == 0 {
		return 0, io.EOF
	}

	n := copy(p, chunk)
	r.offset += int64(n)
	return n, nil
}

// consumerWriter adapts a push-style consumer(chunk) callback into an io.Writer.
type consumerWriter struct {
	ctx      context.Context
	consumer func(ctx context.Context, chunk []byte) error
}

func (w *consumerWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := w.consumer(w.ctx, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Encode reads uncompressed bytes from provider and writes raw DEFLATE-compressed
// bytes to consumer until provider signals end of input (a zero-length chunk with a
// nil error).
func Encode(
	ctx context.Context,
	provider func(ctx context.Context, offset int64, n int) ([]byte, error),
	consumer func(ctx context.Context, chunk []byte) error,
	optFns ...OptFn,
) error {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.setDefaults()

	src := &providerReader{ctx: ctx, provider: provider}
	dst := &consumerWriter{ctx: ctx, consumer: consumer}

	fw, err := flate.NewWriter(dst, opts.Level)
	if err != nil {
		return fmt.Errorf("deflate: create writer: %w", err)
	}

	buf := make([]byte, opts.BufferSize)
	if _, err := copyBufferWithContext(ctx, fw, src, buf); err != nil {
		return fmt.Errorf("deflate: encode: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("deflate: flush: %w", err)
	}

	return nil
}

// Decode reads raw DEFLATE-compressed bytes from provider and writes decompressed
// bytes to consumer until the stream is exhausted.
func Decode(
	ctx context.Context,
	provider func(ctx context.Context, offset int64, n int) ([]byte, error),
	consumer func(ctx context.Context, chunk []byte) error,
	optFns ...OptFn,
) error {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.setDefaults()

	src := &providerReader{ctx: ctx, provider: provider}
	dst := &consumerWriter{ctx: ctx, consumer: consumer}

	fr := flate.NewReader(src)
	defer fr.Close()

	buf := make([]byte, opts.BufferSize)
	if _, err := copyBufferWithContext(ctx, dst, fr, buf); err != nil {
		return fmt.Errorf("deflate: decode: %w", err)
	}

	return nil
}

// copyBufferWithContext is io.CopyBuffer with a context cancellation check between
// every write, grounded on the corpus's util.CopyBufferWithContext.
func copyBufferWithContext(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
			written += int64(nw)

			select {
			case <-ctx.Done():
				return written, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			default:
			}
		}

		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}
