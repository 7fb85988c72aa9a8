package backing

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory_WriteReadRoundTrip(t *testing.T) {
	m := NewMemory()

	require := assert.New(t)
	require.NoError(m.WriteAll([]byte("hello, world")))

	_, err := m.Seek(0, io.SeekStart)
	require.NoError(err)

	got, err := m.ReadToEnd()
	require.NoError(err)
	require.Equal([]byte("hello, world"), got)
}

func TestMemory_SeekClamps(t *testing.T) {
	m := OpenMemory([]byte("0123456789"), Flags{Read: true, Write: true})

	tests := []struct {
		name   string
		offset int64
		whence int
		want   int64
	}{
		{"negative clamps to 0", -5, io.SeekStart, 0},
		{"past end clamps to len", 100, io.SeekStart, 10},
		{"exact end", 10, io.SeekStart, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Seek(tt.offset, tt.whence)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemory_WriteAllGrowsBuffer(t *testing.T) {
	m := OpenMemory([]byte("abc"), Flags{Read: true, Write: true})

	_, err := m.Seek(0, io.SeekEnd)
	assert.NoError(t, err)
	assert.NoError(t, m.WriteAll([]byte("def")))
	assert.Equal(t, []byte("abcdef"), m.Bytes())
}

func TestMemory_WriteAllOverwritesInPlace(t *testing.T) {
	m := OpenMemory([]byte("abcdef"), Flags{Read: true, Write: true})

	_, err := m.Seek(2, io.SeekStart)
	assert.NoError(t, err)
	assert.NoError(t, m.WriteAll([]byte("XY")))
	assert.Equal(t, []byte("abXYef"), m.Bytes())
}

func TestMemory_WriteAllRejectsReadOnly(t *testing.T) {
	m := OpenMemory([]byte("abc"), Flags{Read: true})
	assert.ErrorIs(t, m.WriteAll([]byte("x")), ErrUnwritableFile)
}

func TestMemory_TruncateShrinksAndGrows(t *testing.T) {
	m := OpenMemory([]byte("abcdef"), Flags{Read: true, Write: true})

	assert.NoError(t, m.Truncate(3))
	assert.Equal(t, []byte("abc"), m.Bytes())

	assert.NoError(t, m.Truncate(5))
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0}, m.Bytes())
}

func TestMemory_ReadUpToReturnsEOFAtEnd(t *testing.T) {
	m := OpenMemory([]byte("ab"), Flags{Read: true})
	buf := make([]byte, 8)

	n, err := m.ReadUpTo(buf)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = m.ReadUpTo(buf)
	assert.ErrorIs(t, err, io.EOF)
}
