package deflate

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"small", []byte("the quick brown fox jumps over the lazy dog")},
		{"empty", []byte{}},
		{"repetitive", bytes.Repeat([]byte("ab"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := bytes.NewReader(tt.data)
			provider := func(_ context.Context, _ int64, n int) ([]byte, error) {
				buf := make([]byte, n)
				rn, err := src.Read(buf)
				if rn == 0 {
					return nil, nil
				}
				_ = err
				return buf[:rn], nil
			}

			var compressed bytes.Buffer
			consumer := func(_ context.Context, chunk []byte) error {
				_, err := compressed.Write(chunk)
				return err
			}

			err := Encode(context.Background(), provider, consumer, WithBufferSize(16))
			assert.NoError(t, err)

			compressedBytes := compressed.Bytes()
			offset := 0
			decodeProvider := func(_ context.Context, _ int64, n int) ([]byte, error) {
				if offset >= len(compressedBytes) {
					return nil, nil
				}
				end := offset + n
				if end > len(compressedBytes) {
					end = len(compressedBytes)
				}
				chunk := compressedBytes[offset:end]
				offset = end
				return chunk, nil
			}

			var decoded bytes.Buffer
			decodeConsumer := func(_ context.Context, chunk []byte) error {
				_, err := decoded.Write(chunk)
				return err
			}

			err = Decode(context.Background(), decodeProvider, decodeConsumer, WithBufferSize(16))
			assert.NoError(t, err)
			assert.Equal(t, tt.data, decoded.Bytes())
		})
	}
}

func TestEncode_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := func(_ context.Context, _ int64, n int) ([]byte, error) {
		return make([]byte, n), nil
	}
	consumer := func(_ context.Context, _ []byte) error { return nil }

	err := Encode(ctx, provider, consumer)
	assert.Error(t, err)
}
