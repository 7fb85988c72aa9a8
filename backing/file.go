package backing

import (
	"fmt"
	"io"
	"os"
)

// File is a Backing over a regular file on disk.
type File struct {
	f     *os.File
	flags Flags
}

var _ Backing = &File{}

// OpenFile opens (or creates) name according to flags.
//
// If flags.Create is set, name must not already exist; the file is created with
// permissions perm. Otherwise name must already exist and is opened read-write or
// read-only depending on flags.Write.
func OpenFile(name string, flags Flags, perm os.FileMode) (*File, error) {
	var osFlags int
	switch {
	case flags.Create:
		osFlags = os.O_RDWR | os.O_CREATE | os.O_EXCL
	case flags.Write:
		osFlags = os.O_RDWR
	default:
		osFlags = os.O_RDONLY
	}
	if flags.TruncateOnOpen {
		osFlags |= os.O_TRUNC
	}

	f, err := os.OpenFile(name, osFlags, perm)
	if err != nil {
		if flags.Create {
			return nil, fmt.Errorf("%w: create file error: %w", ErrUnwritableFile, err)
		}
		return nil, fmt.Errorf("%w: open file error: %w", ErrUnreadableFile, err)
	}

	return &File{f: f, flags: flags}, nil
}

func (b *File) Flags() Flags {
	return b.flags
}

func (b *File) Seek(offset int64, whence int) (int64, error) {
	n, err := b.f.Seek(offset, whence)
	if err != nil {
		return n, fmt.Errorf("%w: seek error: %w", ErrUnreadableFile, err)
	}
	return n, nil
}

func (b *File) Offset() (int64, error) {
	return b.Seek(0, io.SeekCurrent)
}

func (b *File) SeekToEnd() (int64, error) {
	return b.Seek(0, io.SeekEnd)
}

func (b *File) ReadUpTo(p []byte) (int, error) {
	n, err := b.f.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: read error: %w", ErrUnreadableFile, err)
	}
	return n, err
}

func (b *File) ReadToEnd() ([]byte, error) {
	data, err := io.ReadAll(b.f)
	if err != nil {
		return nil, fmt.Errorf("%w: read to end error: %w", ErrUnreadableFile, err)
	}
	return data, nil
}

func (b *File) WriteAll(p []byte) error {
	if !b.flags.Write {
		return fmt.Errorf("%w: backing not opened for write", ErrUnwritableFile)
	}

	if b.flags.Append {
		if _, err := b.SeekToEnd(); err != nil {
			return err
		}
	}

	if _, err := b.f.Write(p); err != nil {
		return fmt.Errorf("%w: write error: %w", ErrUnwritableFile, err)
	}
	return nil
}

func (b *File) Truncate(offset int64) error {
	if !b.flags.Write {
		return fmt.Errorf("%w: backing not opened for write", ErrUnwritableFile)
	}
	if err := b.f.Truncate(offset); err != nil {
		return fmt.Errorf("%w: truncate error: %w", ErrUnwritableFile, err)
	}
	return nil
}

func (b *File) Sync() error {
	if !b.flags.Write {
		return nil
	}
	if err := b.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync error: %w", ErrUnwritableFile, err)
	}
	return nil
}

func (b *File) Close() error {
	return b.f.Close()
}
