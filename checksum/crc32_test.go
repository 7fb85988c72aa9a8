package checksum

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"hello", []byte("hello"), 0x3610A686},
		{"empty", []byte{}, 0x00000000},
		{"4096 zero bytes", make([]byte, 4096), 0x1E8B0731},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = %#08x, want %#08x", got, tt.want)
			}
		})
	}
}

func TestCRC32_WriteInChunks(t *testing.T) {
	h := New()
	_, _ = h.Write([]byte("hel"))
	_, _ = h.Write([]byte("lo"))
	if got, want := h.Sum32(), uint32(0x3610A686); got != want {
		t.Errorf("Sum32() = %#08x, want %#08x", got, want)
	}
}

func TestCRC32_Reset(t *testing.T) {
	h := New()
	_, _ = h.Write([]byte("hello"))
	h.Reset()
	if got := h.Sum32(); got != 0 {
		t.Errorf("Sum32() after Reset() = %#08x, want 0", got)
	}
	_, _ = h.Write([]byte("hello"))
	if got, want := h.Sum32(), uint32(0x3610A686); got != want {
		t.Errorf("Sum32() = %#08x, want %#08x", got, want)
	}
}
