package zipkit

import "errors"

// ErrUnreadableArchive wraps failures reading the backing or parsing its records.
var ErrUnreadableArchive = errors.New("zipkit: unreadable archive")

// ErrUnwritableArchive wraps failures creating or writing to the backing. Attempts
// to mutate an archive opened read-only fail with ErrReadOnly instead.
var ErrUnwritableArchive = errors.New("zipkit: unwritable archive")

// ErrCorruptArchive is returned when records parse structurally but are internally
// inconsistent (sentinel sizes with no matching ZIP64 extra, truncated central
// directory, entry count mismatch between EOCD and the records actually read).
var ErrCorruptArchive = errors.New("zipkit: corrupt archive")

// ErrInvalidCRC32 is returned by CheckIntegrity and ExtractEntry when a payload's
// recomputed CRC-32 doesn't match the catalog value.
var ErrInvalidCRC32 = errors.New("zipkit: crc32 mismatch")

// ErrInvalidEntryPath is returned when AddEntry is given an absolute path, a path
// containing "..", or an empty path.
var ErrInvalidEntryPath = errors.New("zipkit: invalid entry path")

// ErrEntryNotFound is returned by RemoveEntry when no entry with the given name
// exists in the catalog.
var ErrEntryNotFound = errors.New("zipkit: entry not found")

// ErrEntryExists is returned by AddEntry when an entry with the given name is
// already present.
var ErrEntryExists = errors.New("zipkit: entry already exists")

// ErrClosed is returned by any Archive operation attempted after Close.
var ErrClosed = errors.New("zipkit: archive closed")

// ErrReadOnly is returned by AddEntry/RemoveEntry when the archive was opened with
// OpenRead.
var ErrReadOnly = errors.New("zipkit: archive opened read-only")

// ErrUnsupportedMethod is returned when an entry's compression method is neither
// Stored nor Deflate.
var ErrUnsupportedMethod = errors.New("zipkit: unsupported compression method")

// ErrCancelled wraps ctx.Err() at every cancellation check between buffered chunks in
// AddEntry, RemoveEntry, and ExtractEntry, so callers can test for cancellation with
// errors.Is(err, ErrCancelled) instead of matching context.Canceled/DeadlineExceeded
// directly.
var ErrCancelled = errors.New("zipkit: operation cancelled")
