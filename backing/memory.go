package backing

import (
	"fmt"
	"io"
)

// Memory is a Backing over a growable in-memory byte buffer.
//
// The zero value is not ready for use; construct with NewMemory or OpenMemory.
type Memory struct {
	buf    []byte
	offset int64
	flags  Flags
}

var _ Backing = &Memory{}

// NewMemory returns an empty, read-write, writable Memory backing suitable for
// Archive's Create mode.
func NewMemory() *Memory {
	return &Memory{
		flags: Flags{Read: true, Write: true, Create: true},
	}
}

// OpenMemory wraps an existing byte slice as a Memory backing opened with flags.
//
// The slice is used directly (not copied); callers should not mutate it concurrently.
func OpenMemory(data []byte, flags Flags) *Memory {
	return &Memory{buf: data, flags: flags}
}

// Bytes returns the current contents of the buffer.
//
// Callers must not mutate the returned slice.
func (b *Memory) Bytes() []byte {
	return b.buf
}

func (b *Memory) Flags() Flags {
	return b.flags
}

func (b *Memory) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.offset + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return b.offset, fmt.Errorf("%w: invalid whence %d", ErrUnreadableFile, whence)
	}

	// clamp to [0, len(buf)], same contract as spec's memory backing.
	b.offset = max(0, min(abs, int64(len(b.buf))))
	return b.offset, nil
}

func (b *Memory) Offset() (int64, error) {
	return b.offset, nil
}

func (b *Memory) SeekToEnd() (int64, error) {
	return b.Seek(0, io.SeekEnd)
}

func (b *Memory) ReadUpTo(p []byte) (int, error) {
	if !b.flags.Read {
		return 0, fmt.Errorf("%w: backing not opened for read", ErrUnreadableFile)
	}

	if b.offset >= int64(len(b.buf)) {
		return 0, io.EOF
	}

	n := copy(p, b.buf[b.offset:])
	b.offset += int64(n)
	return n, nil
}

func (b *Memory) ReadToEnd() ([]byte, error) {
	if !b.flags.Read {
		return nil, fmt.Errorf("%w: backing not opened for read", ErrUnreadableFile)
	}

	data := make([]byte, len(b.buf)-int(b.offset))
	copy(data, b.buf[b.offset:])
	b.offset = int64(len(b.buf))
	return data, nil
}

func (b *Memory) WriteAll(p []byte) error {
	if !b.flags.Write {
		return fmt.Errorf("%w: backing not opened for write", ErrUnwritableFile)
	}

	if b.flags.Append {
		if _, err := b.SeekToEnd(); err != nil {
			return err
		}
	}

	end := b.offset + int64(len(p))
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}

	copy(b.buf[b.offset:end], p)
	b.offset = end
	return nil
}

func (b *Memory) Truncate(offset int64) error {
	if !b.flags.Write {
		return fmt.Errorf("%w: backing not opened for write", ErrUnwritableFile)
	}
	if offset < 0 {
		return fmt.Errorf("%w: negative truncate offset %d", ErrUnwritableFile, offset)
	}

	switch {
	case offset <= int64(len(b.buf)):
		b.buf = b.buf[:offset]
	default:
		grown := make([]byte, offset)
		copy(grown, b.buf)
		b.buf = grown
	}

	b.offset = min(b.offset, int64(len(b.buf)))
	return nil
}

func (b *Memory) Sync() error {
	return nil
}

func (b *Memory) Close() error {
	return nil
}
