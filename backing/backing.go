// Package backing provides the uniform seekable byte-stream abstraction that the
// archive core reads and writes through: a regular file on disk, or a growable
// in-memory buffer.
package backing

import (
	"errors"
	"io"
)

// ErrUnreadableFile is returned when a read fails against the backing.
var ErrUnreadableFile = errors.New("backing: unreadable file")

// ErrUnwritableFile is returned when a write is attempted without the Write flag, or
// when the underlying write fails.
var ErrUnwritableFile = errors.New("backing: unwritable file")

// Flags is the capability set a Backing was opened with.
type Flags struct {
	// Read allows ReadUpTo/ReadToEnd.
	Read bool
	// Write allows WriteAll/Truncate.
	Write bool
	// Create creates the backing, failing if it already exists (file backing only).
	Create bool
	// TruncateOnOpen truncates any existing content at open time.
	TruncateOnOpen bool
	// Append forces every WriteAll to first seek to end.
	Append bool
}

// Backing is a seekable byte stream that the archive core reads and writes through.
//
// Implementations: File (a regular file on disk) and Memory (a growable in-memory
// buffer). Neither implementation is safe for concurrent use; the Archive that owns a
// Backing serializes all operations against it.
type Backing interface {
	io.Closer

	// Flags returns the capability set this Backing was opened with.
	Flags() Flags

	// Seek repositions the current offset, taking io.Seeker's whence values. Memory
	// clamps the resulting offset to [0, len] rather than failing.
	Seek(offset int64, whence int) (int64, error)

	// Offset returns the current read/write offset.
	Offset() (int64, error)

	// SeekToEnd seeks to the end of the backing and returns the resulting offset
	// (equivalently, the size of the backing).
	SeekToEnd() (int64, error)

	// ReadUpTo reads at most len(p) bytes starting at the current offset, advancing
	// the offset by the number of bytes read. Short reads are allowed; io.EOF is
	// returned only when no bytes at all could be read.
	ReadUpTo(p []byte) (int, error)

	// ReadToEnd reads all remaining bytes from the current offset to the end of the
	// backing.
	ReadToEnd() ([]byte, error)

	// WriteAll writes every byte of p starting at the current offset (seeking to end
	// first if the Append flag is set), advancing the offset by len(p). Fails
	// immediately with ErrUnwritableFile if Flags().Write is false.
	WriteAll(p []byte) error

	// Truncate resizes the backing to exactly offset bytes, zero-filling if growing.
	Truncate(offset int64) error

	// Sync flushes any buffered writes to stable storage. A no-op for Memory.
	Sync() error
}
